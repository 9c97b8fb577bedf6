package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"docchat/internal/model"
	"docchat/internal/pkg/pdfextract"
	"docchat/internal/pkg/pdfextract/pdftest"
	"docchat/internal/repository"
)

type fakeExtractor struct {
	pages []string
	err   error
	input []byte
}

func (f *fakeExtractor) ExtractPages(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.input = raw
	return f.pages, f.err
}

type recordingPublisher struct {
	jobs []model.IngestJob
	err  error
}

func (p *recordingPublisher) PublishIngest(_ context.Context, job model.IngestJob) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func newDocumentService(t *testing.T, extractor PageExtractor, publisher IngestPublisher) (*DocumentService, string, string) {
	t.Helper()
	root := t.TempDir()
	pdfDir := filepath.Join(root, "pdfs")
	docDir := filepath.Join(root, "mds")
	docs, err := repository.NewDocumentRepository(docDir)
	if err != nil {
		t.Fatal(err)
	}
	svc, err := NewDocumentService(docs, extractor, publisher, pdfDir, PageLimits{Default: 10, Max: 100})
	if err != nil {
		t.Fatal(err)
	}
	return svc, pdfDir, docDir
}

func assertNoStagedPDFs(t *testing.T, pdfDir string) {
	t.Helper()
	entries, err := os.ReadDir(pdfDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("transient pdfs left behind: %v", entries)
	}
}

func TestUpload_ConvertsAndRemovesPDF(t *testing.T) {
	extractor := &fakeExtractor{pages: []string{"  TCP is a trans-\nport protocol.  ", "", "Second page."}}
	svc, pdfDir, docDir := newDocumentService(t, extractor, nil)

	got, err := svc.Upload(context.Background(), UploadInput{
		FileName: "network.pdf",
		Data:     bytes.NewReader([]byte("%PDF-1.4 fake")),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if got.Document != "network.md" || got.Message != "Saved as network.md" || got.Queued {
		t.Errorf("result = %+v", got)
	}
	if string(extractor.input) != "%PDF-1.4 fake" {
		t.Errorf("extractor saw %q", extractor.input)
	}

	raw, err := os.ReadFile(filepath.Join(docDir, "network.md"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "TCP is a transport protocol.\n\nSecond page."; string(raw) != want {
		t.Errorf("document = %q, want %q", raw, want)
	}
	assertNoStagedPDFs(t, pdfDir)
}

func TestUpload_RealPDFJoinsHyphenatedWordAcrossPages(t *testing.T) {
	svc, pdfDir, docDir := newDocumentService(t, pdfextract.New(), nil)
	pdf := pdftest.Build(
		pdftest.TextPage("Layer one."),
		pdftest.TextPage("exam-"),
		pdftest.TextPage("ple"),
	)

	got, err := svc.Upload(context.Background(), UploadInput{FileName: "layers.pdf", Data: bytes.NewReader(pdf)})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if got.Document != "layers.md" {
		t.Errorf("document = %q", got.Document)
	}
	raw, err := os.ReadFile(filepath.Join(docDir, "layers.md"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "Layer one.\n\nexample"; string(raw) != want {
		t.Errorf("document = %q, want %q", raw, want)
	}
	assertNoStagedPDFs(t, pdfDir)
}

func TestUpload_ReplacesExistingDocument(t *testing.T) {
	extractor := &fakeExtractor{pages: []string{"v1"}}
	svc, _, docDir := newDocumentService(t, extractor, nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, UploadInput{FileName: "a.pdf", Data: bytes.NewReader(nil)}); err != nil {
		t.Fatal(err)
	}
	extractor.pages = []string{"v2"}
	if _, err := svc.Upload(ctx, UploadInput{FileName: "a.pdf", Data: bytes.NewReader(nil)}); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(docDir, "a.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "v2" {
		t.Errorf("document = %q, want v2", raw)
	}
}

func TestUpload_NoTextStoresEmptyDocument(t *testing.T) {
	svc, _, docDir := newDocumentService(t, &fakeExtractor{pages: []string{" ", ""}}, nil)

	if _, err := svc.Upload(context.Background(), UploadInput{FileName: "scan.pdf", Data: bytes.NewReader(nil)}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(docDir, "scan.md"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("document size = %d, want 0", info.Size())
	}
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		want     error
	}{
		{"not pdf", "notes.txt", ErrNotPDF},
		{"no extension", "report", ErrNotPDF},
		{"hidden", ".pdf", ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, docDir := newDocumentService(t, &fakeExtractor{}, nil)
			_, err := svc.Upload(context.Background(), UploadInput{FileName: tt.fileName, Data: bytes.NewReader(nil)})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Upload(%q) error = %v, want %v", tt.fileName, err, tt.want)
			}
			entries, _ := os.ReadDir(docDir)
			if len(entries) != 0 {
				t.Errorf("corpus changed: %v", entries)
			}
		})
	}
}

func TestUpload_PathIsReducedToBaseName(t *testing.T) {
	svc, _, docDir := newDocumentService(t, &fakeExtractor{pages: []string{"x"}}, nil)

	got, err := svc.Upload(context.Background(), UploadInput{FileName: "../../etc/Report.PDF", Data: bytes.NewReader(nil)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Document != "Report.md" {
		t.Errorf("document = %q", got.Document)
	}
	if _, err := os.Stat(filepath.Join(docDir, "Report.md")); err != nil {
		t.Error(err)
	}
}

func TestUpload_DecodeFailureLeavesCorpusUnchanged(t *testing.T) {
	cause := errors.New("malformed xref")
	svc, _, docDir := newDocumentService(t, &fakeExtractor{err: cause}, nil)

	_, err := svc.Upload(context.Background(), UploadInput{FileName: "broken.pdf", Data: bytes.NewReader([]byte("junk"))})
	if !errors.Is(err, ErrPDFDecode) || !errors.Is(err, cause) {
		t.Fatalf("Upload() error = %v, want ErrPDFDecode wrapping cause", err)
	}
	if _, err := os.Stat(filepath.Join(docDir, "broken.md")); !os.IsNotExist(err) {
		t.Errorf("broken.md should not exist: %v", err)
	}
}

func TestEnqueue(t *testing.T) {
	extractor := &fakeExtractor{pages: []string{"queued text"}}
	publisher := &recordingPublisher{}
	svc, pdfDir, docDir := newDocumentService(t, extractor, publisher)
	ctx := context.Background()

	got, err := svc.Enqueue(ctx, UploadInput{FileName: "later.pdf", Data: bytes.NewReader([]byte("pdf"))})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if !got.Queued || got.Document != "later.md" {
		t.Errorf("result = %+v", got)
	}
	if len(publisher.jobs) != 1 || publisher.jobs[0].FileName != "later.pdf" {
		t.Fatalf("jobs = %+v", publisher.jobs)
	}
	if _, err := os.Stat(filepath.Join(pdfDir, publisher.jobs[0].StagedFile)); err != nil {
		t.Fatalf("pdf not staged: %v", err)
	}

	if _, err := svc.Convert(ctx, publisher.jobs[0]); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(docDir, "later.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "queued text" {
		t.Errorf("document = %q", raw)
	}
	assertNoStagedPDFs(t, pdfDir)
}

func TestEnqueue_SameNameUploadsStageSeparately(t *testing.T) {
	extractor := &fakeExtractor{pages: []string{"text"}}
	publisher := &recordingPublisher{}
	svc, pdfDir, _ := newDocumentService(t, extractor, publisher)
	ctx := context.Background()

	for _, body := range []string{"%PDF first", "%PDF second"} {
		if _, err := svc.Enqueue(ctx, UploadInput{FileName: "dup.pdf", Data: bytes.NewReader([]byte(body))}); err != nil {
			t.Fatal(err)
		}
	}
	if len(publisher.jobs) != 2 {
		t.Fatalf("jobs = %+v", publisher.jobs)
	}
	first, second := publisher.jobs[0], publisher.jobs[1]
	if first.FileName != "dup.pdf" || second.FileName != "dup.pdf" {
		t.Errorf("jobs = %+v", publisher.jobs)
	}
	if first.StagedFile == second.StagedFile {
		t.Fatalf("both uploads staged as %q", first.StagedFile)
	}
	for job, want := range map[model.IngestJob]string{first: "%PDF first", second: "%PDF second"} {
		raw, err := os.ReadFile(filepath.Join(pdfDir, job.StagedFile))
		if err != nil {
			t.Fatal(err)
		}
		if string(raw) != want {
			t.Errorf("%s holds %q, want %q", job.StagedFile, raw, want)
		}
	}

	if _, err := svc.Convert(ctx, second); err != nil {
		t.Fatal(err)
	}
	if string(extractor.input) != "%PDF second" {
		t.Errorf("extractor saw %q", extractor.input)
	}
	if _, err := svc.Convert(ctx, first); err != nil {
		t.Fatal(err)
	}
	if string(extractor.input) != "%PDF first" {
		t.Errorf("extractor saw %q", extractor.input)
	}
	assertNoStagedPDFs(t, pdfDir)
}

func TestConvert_RejectsStagedPathOutsideFolder(t *testing.T) {
	svc, _, _ := newDocumentService(t, &fakeExtractor{}, nil)
	for _, staged := range []string{"../a.pdf", "sub/a.pdf", ".hidden.pdf"} {
		_, err := svc.Convert(context.Background(), model.IngestJob{FileName: "a.pdf", StagedFile: staged})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Convert(staged %q) error = %v, want ErrInvalidInput", staged, err)
		}
	}
}

func TestEnqueue_Disabled(t *testing.T) {
	svc, _, _ := newDocumentService(t, &fakeExtractor{}, nil)
	if svc.AsyncEnabled() {
		t.Fatal("AsyncEnabled() = true without publisher")
	}
	_, err := svc.Enqueue(context.Background(), UploadInput{FileName: "a.pdf", Data: bytes.NewReader(nil)})
	if !errors.Is(err, ErrAsyncDisabled) {
		t.Errorf("Enqueue() error = %v, want ErrAsyncDisabled", err)
	}
}

func TestEnqueue_PublishFailureRemovesPDF(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("channel closed")}
	svc, pdfDir, _ := newDocumentService(t, &fakeExtractor{}, publisher)

	if _, err := svc.Enqueue(context.Background(), UploadInput{FileName: "a.pdf", Data: bytes.NewReader(nil)}); err == nil {
		t.Fatal("Enqueue() should fail when publishing fails")
	}
	assertNoStagedPDFs(t, pdfDir)
}

func TestListAndRemoveDocuments(t *testing.T) {
	svc, _, _ := newDocumentService(t, &fakeExtractor{pages: []string{"x"}}, nil)
	ctx := context.Background()
	for _, name := range []string{"b.pdf", "a.pdf", "c.pdf"} {
		if _, err := svc.Upload(ctx, UploadInput{FileName: name, Data: bytes.NewReader(nil)}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := svc.ListDocuments("", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Documents) != 2 || page.Documents[0] != "a.md" || page.NextCursor == nil || *page.NextCursor != "b.md" {
		t.Fatalf("first page = %+v", page)
	}
	page, err = svc.ListDocuments(*page.NextCursor, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Documents) != 1 || page.Documents[0] != "c.md" || page.NextCursor != nil {
		t.Fatalf("second page = %+v", page)
	}

	if err := svc.RemoveDocument("b.md"); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveDocument("b.md"); !errors.Is(err, repository.ErrDocumentNotFound) {
		t.Errorf("second remove error = %v, want ErrDocumentNotFound", err)
	}
}
