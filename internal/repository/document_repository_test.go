package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newDocumentRepo(t *testing.T) *DocumentRepository {
	t.Helper()
	repo, err := NewDocumentRepository(filepath.Join(t.TempDir(), "mds"))
	if err != nil {
		t.Fatalf("NewDocumentRepository() error = %v", err)
	}
	return repo
}

func collectAll(t *testing.T, repo *DocumentRepository, limit int) []string {
	t.Helper()
	var (
		all    []string
		cursor string
	)
	for i := 0; ; i++ {
		if i > 1000 {
			t.Fatal("pagination did not terminate")
		}
		page, err := repo.List(cursor, limit)
		if err != nil {
			t.Fatalf("List(%q, %d) error = %v", cursor, limit, err)
		}
		all = append(all, page.Documents...)
		if page.NextCursor == nil {
			return all
		}
		cursor = *page.NextCursor
	}
}

func TestDocumentRepository_PaginationEnumeratesEverything(t *testing.T) {
	repo := newDocumentRepo(t)
	var want []string
	for i := 0; i < 23; i++ {
		name := fmt.Sprintf("doc-%02d.md", i)
		want = append(want, name)
		if _, err := repo.Put(name, "content "+name); err != nil {
			t.Fatal(err)
		}
	}
	// Files without the document extension are not part of the corpus.
	if err := os.WriteFile(filepath.Join(repo.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, limit := range []int{1, 2, 5, 7, 22, 23, 24, 100} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			got := collectAll(t, repo, limit)
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestDocumentRepository_ListExactPageHasNoCursor(t *testing.T) {
	repo := newDocumentRepo(t)
	for _, name := range []string{"a.md", "b.md", "c.md"} {
		if _, err := repo.Put(name, name); err != nil {
			t.Fatal(err)
		}
	}

	page, err := repo.List("", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Documents) != 3 || page.NextCursor != nil {
		t.Errorf("page = %v, cursor = %v; want 3 docs and no cursor", page.Documents, page.NextCursor)
	}

	page, err = repo.List("c.md", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Documents) != 0 || page.NextCursor != nil {
		t.Errorf("past the end: %v, %v", page.Documents, page.NextCursor)
	}
}

func TestDocumentRepository_CursorIsKeyset(t *testing.T) {
	repo := newDocumentRepo(t)
	for _, name := range []string{"a.md", "c.md", "e.md"} {
		if _, err := repo.Put(name, name); err != nil {
			t.Fatal(err)
		}
	}

	page, err := repo.List("", 1)
	if err != nil {
		t.Fatal(err)
	}
	if page.NextCursor == nil || *page.NextCursor != "a.md" {
		t.Fatalf("cursor = %v, want a.md", page.NextCursor)
	}

	// A name after the cursor added mid-scan is picked up; a deleted one
	// simply disappears.
	if _, err := repo.Put("d.md", "d"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Remove("c.md"); err != nil {
		t.Fatal(err)
	}
	got := collectAll(t, repo, 1)
	if strings.Join(got, ",") != "a.md,d.md,e.md" {
		t.Errorf("got %v", got)
	}

	// A cursor that is not itself a stored name still works.
	page, err = repo.List("b.md", 10)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(page.Documents, ",") != "d.md,e.md" {
		t.Errorf("List(b.md) = %v", page.Documents)
	}
}

func TestDocumentRepository_PutGetRemove(t *testing.T) {
	repo := newDocumentRepo(t)

	if _, err := repo.Put("network.md", "old"); err != nil {
		t.Fatal(err)
	}
	doc, err := repo.Put("network.md", "Layer one.\n\nLayer two.")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Path != filepath.Join(repo.Dir(), "network.md") {
		t.Errorf("path = %q", doc.Path)
	}

	got, err := repo.Get("network.md")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "Layer one.\n\nLayer two." {
		t.Errorf("content = %q, re-upload should replace", got.Content)
	}

	if err := repo.Remove("network.md"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := repo.Remove("network.md"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("second Remove() error = %v, want ErrDocumentNotFound", err)
	}
	if _, err := repo.Get("network.md"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Get() after remove error = %v", err)
	}
}

func TestDocumentRepository_EmptyDocument(t *testing.T) {
	repo := newDocumentRepo(t)
	if _, err := repo.Put("blank.md", ""); err != nil {
		t.Fatalf("Put() empty content error = %v", err)
	}
	page, err := repo.List("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Documents) != 1 || page.Documents[0] != "blank.md" {
		t.Errorf("documents = %v", page.Documents)
	}
}

func TestDocumentRepository_RejectsBadNames(t *testing.T) {
	repo := newDocumentRepo(t)
	for _, name := range []string{"", "../escape.md", "dir/x.md", ".hidden.md", "notes.txt"} {
		if _, err := repo.Put(name, "x"); !errors.Is(err, ErrInvalidDocumentName) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidDocumentName", name, err)
		}
	}
}

func TestDocumentRepository_RemoveUnstorableName(t *testing.T) {
	repo := newDocumentRepo(t)
	if _, err := repo.Put("notes.md", "x"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want error
	}{
		{"notes.txt", ErrDocumentNotFound},
		{"notes", ErrDocumentNotFound},
		{".hidden.md", ErrDocumentNotFound},
		{"..", ErrDocumentNotFound},
		{"", ErrInvalidDocumentName},
		{"../escape.md", ErrInvalidDocumentName},
		{"dir/x.md", ErrInvalidDocumentName},
		{`dir\x.md`, ErrInvalidDocumentName},
	}
	for _, tt := range tests {
		if err := repo.Remove(tt.name); !errors.Is(err, tt.want) {
			t.Errorf("Remove(%q) error = %v, want %v", tt.name, err, tt.want)
		}
	}
	if _, err := repo.Get("notes.md"); err != nil {
		t.Errorf("notes.md should survive: %v", err)
	}
}

func TestDocumentRepository_AllText(t *testing.T) {
	repo := newDocumentRepo(t)
	if _, err := repo.Put("doc2.md", "Link layer."); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Put("doc1.md", "Physical layer."); err != nil {
		t.Fatal(err)
	}

	got, err := repo.AllText(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := "Doc: doc1.md\nPhysical layer.\n\nDoc: doc2.md\nLink layer.\n\n"
	if got != want {
		t.Errorf("AllText() = %q, want %q", got, want)
	}
}

func TestDocumentName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"network.pdf", "network.md"},
		{"Report.Final.PDF", "Report.Final.md"},
		{"/tmp/upload/x.pdf", "x.md"},
		{"../../etc/evil.pdf", "evil.md"},
	}
	for _, tt := range tests {
		if got := DocumentName(tt.in); got != tt.want {
			t.Errorf("DocumentName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
