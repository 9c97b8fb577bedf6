package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"docchat/internal/model"
	"docchat/internal/pkg/textnorm"
	"docchat/internal/repository"
)

type PageExtractor interface {
	ExtractPages(r io.Reader) ([]string, error)
}

type IngestPublisher interface {
	PublishIngest(ctx context.Context, job model.IngestJob) error
}

type DocumentService struct {
	docs      *repository.DocumentRepository
	extractor PageExtractor
	publisher IngestPublisher
	pdfDir    string
	limits    PageLimits
	logger    *slog.Logger
}

type UploadInput struct {
	FileName string
	Data     io.Reader
}

type UploadResult struct {
	Document string `json:"document"`
	Message  string `json:"message"`
	Queued   bool   `json:"queued"`
}

// NewDocumentService wires the ingestor. publisher may be nil, in which case
// only synchronous uploads are accepted.
func NewDocumentService(
	docs *repository.DocumentRepository,
	extractor PageExtractor,
	publisher IngestPublisher,
	pdfDir string,
	limits PageLimits,
) (*DocumentService, error) {
	if err := os.MkdirAll(pdfDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pdf dir failed: %w", err)
	}
	return &DocumentService{
		docs:      docs,
		extractor: extractor,
		publisher: publisher,
		pdfDir:    pdfDir,
		limits:    limits,
		logger:    slog.Default().With("component", "documents"),
	}, nil
}

func (s *DocumentService) AsyncEnabled() bool {
	return s.publisher != nil
}

// Upload stores the PDF in the transient folder and converts it right away.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	job, err := s.storePDF(input)
	if err != nil {
		return nil, err
	}
	return s.Convert(ctx, job)
}

// Enqueue stores the PDF and leaves the conversion to the ingest worker.
func (s *DocumentService) Enqueue(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if s.publisher == nil {
		return nil, ErrAsyncDisabled
	}
	job, err := s.storePDF(input)
	if err != nil {
		return nil, err
	}
	if err := s.publisher.PublishIngest(ctx, job); err != nil {
		s.removePDF(job.StagedFile)
		return nil, err
	}
	docName := repository.DocumentName(job.FileName)
	return &UploadResult{
		Document: docName,
		Message:  "Queued for conversion as " + docName,
		Queued:   true,
	}, nil
}

// Convert turns a PDF already in the transient folder into a corpus
// document. The staged PDF is removed only after the document has been
// written.
func (s *DocumentService) Convert(ctx context.Context, job model.IngestJob) (*UploadResult, error) {
	name, docName, err := uploadNames(job.FileName)
	if err != nil {
		return nil, err
	}
	staged := job.StagedFile
	if staged == "" {
		staged = name
	}
	if staged != filepath.Base(staged) || strings.HasPrefix(staged, ".") {
		return nil, fmt.Errorf("%w: staged file %q", ErrInvalidInput, job.StagedFile)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages, err := s.extractPages(staged)
	if err != nil {
		return nil, err
	}

	text := textnorm.Normalize(pages)
	if text == "" {
		s.logger.Warn("pdf has no extractable text", "file", name)
	}
	if _, err := s.docs.Put(docName, text); err != nil {
		return nil, err
	}
	s.removePDF(staged)

	return &UploadResult{Document: docName, Message: "Saved as " + docName}, nil
}

func (s *DocumentService) ListDocuments(cursor string, limit int) (*repository.DocumentPage, error) {
	return s.docs.List(cursor, s.limits.clamp(limit))
}

func (s *DocumentService) RemoveDocument(name string) error {
	return s.docs.Remove(name)
}

// storePDF writes the upload to a uniquely named file in the transient
// folder, so concurrent uploads of the same name never share bytes.
func (s *DocumentService) storePDF(input UploadInput) (model.IngestJob, error) {
	name, _, err := uploadNames(input.FileName)
	if err != nil {
		return model.IngestJob{}, err
	}
	if input.Data == nil {
		return model.IngestJob{}, ErrInvalidInput
	}

	ext := filepath.Ext(name)
	f, err := os.CreateTemp(s.pdfDir, strings.TrimSuffix(name, ext)+"-*"+ext)
	if err != nil {
		return model.IngestJob{}, fmt.Errorf("create pdf file failed: %w", err)
	}
	staged := filepath.Base(f.Name())
	if _, err := io.Copy(f, input.Data); err != nil {
		_ = f.Close()
		s.removePDF(staged)
		return model.IngestJob{}, fmt.Errorf("write pdf file failed: %w", err)
	}
	if err := f.Close(); err != nil {
		s.removePDF(staged)
		return model.IngestJob{}, fmt.Errorf("close pdf file failed: %w", err)
	}
	return model.IngestJob{FileName: name, StagedFile: staged}, nil
}

func (s *DocumentService) extractPages(name string) ([]string, error) {
	f, err := os.Open(filepath.Join(s.pdfDir, name))
	if err != nil {
		return nil, fmt.Errorf("open pdf file failed: %w", err)
	}
	defer f.Close()

	pages, err := s.extractor.ExtractPages(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPDFDecode, err)
	}
	return pages, nil
}

func (s *DocumentService) removePDF(name string) {
	if err := os.Remove(filepath.Join(s.pdfDir, name)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove transient pdf failed", "file", name, "error", err)
	}
}

// uploadNames reduces an uploaded file name to its base name and derives the
// stored document name from it.
func uploadNames(fileName string) (string, string, error) {
	name := filepath.Base(strings.TrimSpace(strings.ReplaceAll(fileName, "\\", "/")))
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", "", ErrNotPDF
	}
	docName := repository.DocumentName(name)
	if strings.HasPrefix(name, ".") || docName == repository.DocumentExt {
		return "", "", fmt.Errorf("%w: file name %q", ErrInvalidInput, fileName)
	}
	return name, docName, nil
}
