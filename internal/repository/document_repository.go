package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docchat/internal/model"
)

const DocumentExt = ".md"

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidDocumentName = errors.New("invalid document name")
)

// DocumentPage is one page of a name-ordered corpus listing. NextCursor is
// nil once the listing is exhausted.
type DocumentPage struct {
	Documents  []string `json:"documents"`
	NextCursor *string  `json:"next_cursor"`
}

// DocumentRepository stores normalized documents as one file per document in
// a single directory. The directory contents are the only source of truth.
type DocumentRepository struct {
	dir string
}

func NewDocumentRepository(dir string) (*DocumentRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir failed: %w", err)
	}
	return &DocumentRepository{dir: dir}, nil
}

func (r *DocumentRepository) Dir() string {
	return r.dir
}

// Put writes or replaces a document. The content is written to a temporary
// file first and renamed into place so readers never see a partial file.
func (r *DocumentRepository) Put(name, content string) (*model.Document, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(r.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp document failed: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write document failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close document failed: %w", err)
	}

	path := r.path(name)
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("store document failed: %w", err)
	}
	return &model.Document{Name: name, Path: path, Content: content}, nil
}

func (r *DocumentRepository) Get(name string) (*model.Document, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	path := r.path(name)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document failed: %w", err)
	}
	return &model.Document{Name: name, Path: path, Content: string(raw)}, nil
}

// List returns up to limit names strictly greater than cursor, in ascending
// order. The scan is keyed on the name itself, so documents added after the
// cursor show up on later pages and deleted ones simply disappear.
func (r *DocumentRepository) List(cursor string, limit int) (*DocumentPage, error) {
	if limit <= 0 {
		limit = 10
	}

	names, err := r.names()
	if err != nil {
		return nil, err
	}

	start := 0
	if cursor != "" {
		start = sort.SearchStrings(names, cursor)
		if start < len(names) && names[start] == cursor {
			start++
		}
	}

	end := start + limit
	if end > len(names) {
		end = len(names)
	}
	page := &DocumentPage{Documents: append([]string{}, names[start:end]...)}
	if len(page.Documents) == limit && end < len(names) {
		next := page.Documents[len(page.Documents)-1]
		page.NextCursor = &next
	}
	return page, nil
}

// All reads every document in name order. Documents that cannot be read are
// skipped; they may have been removed between the listing and the read.
func (r *DocumentRepository) All(ctx context.Context) ([]model.Document, error) {
	names, err := r.names()
	if err != nil {
		return nil, err
	}

	docs := make([]model.Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(r.path(name))
		if err != nil {
			continue
		}
		docs = append(docs, model.Document{Name: name, Path: r.path(name), Content: string(raw)})
	}
	return docs, nil
}

// AllText concatenates every readable document, each block prefixed with a
// marker naming its source.
func (r *DocumentRepository) AllText(ctx context.Context) (string, error) {
	docs, err := r.All(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, doc := range docs {
		b.WriteString(DocumentMarker(doc.Name))
		b.WriteString(doc.Content)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// Remove deletes a stored document. A name carrying a path is rejected; any
// other name that could never have been stored is simply not found.
func (r *DocumentRepository) Remove(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentName, name)
	}
	if validateName(name) != nil {
		return ErrDocumentNotFound
	}
	err := os.Remove(r.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("remove document failed: %w", err)
	}
	return nil
}

// DocumentMarker is the delimiter written before each document's content
// when documents are concatenated into grounding context.
func DocumentMarker(name string) string {
	return "Doc: " + name + "\n"
}

// DocumentName maps an uploaded file name to its stored document name by
// swapping the extension.
func DocumentName(uploadName string) string {
	base := filepath.Base(uploadName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + DocumentExt
}

func (r *DocumentRepository) names() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), DocumentExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	// ReadDir already sorts by name; keep the invariant explicit.
	sort.Strings(names)
	return names, nil
}

func (r *DocumentRepository) path(name string) string {
	return filepath.Join(r.dir, name)
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, DocumentExt) {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentName, name)
	}
	return nil
}
