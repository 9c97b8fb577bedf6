package worker

import (
	"context"
	"errors"
	"testing"

	"docchat/internal/app"
	"docchat/internal/model"
)

type fakeConverter struct {
	jobs []model.IngestJob
	err  error
}

func (f *fakeConverter) Convert(_ context.Context, job model.IngestJob) (*app.UploadResult, error) {
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return nil, f.err
	}
	return &app.UploadResult{Document: "out.md"}, nil
}

func TestIngestWorker_Handle(t *testing.T) {
	converter := &fakeConverter{}
	w := NewIngestWorker(nil, converter, "ingest")

	body := `{"file_name":"network.pdf","staged_file":"network-123.pdf"}`
	if err := w.handle(context.Background(), []byte(body)); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	want := model.IngestJob{FileName: "network.pdf", StagedFile: "network-123.pdf"}
	if len(converter.jobs) != 1 || converter.jobs[0] != want {
		t.Errorf("converted = %+v, want %+v", converter.jobs, want)
	}
}

func TestIngestWorker_HandleRejectsBadJobs(t *testing.T) {
	converter := &fakeConverter{}
	w := NewIngestWorker(nil, converter, "ingest")

	for _, body := range []string{`not json`, `{}`, `{"file_name":""}`} {
		if err := w.handle(context.Background(), []byte(body)); err == nil {
			t.Errorf("handle(%q) error = nil", body)
		}
	}
	if len(converter.jobs) != 0 {
		t.Errorf("converter called for bad jobs: %v", converter.jobs)
	}
}

func TestIngestWorker_HandlePropagatesConvertError(t *testing.T) {
	converter := &fakeConverter{err: app.ErrPDFDecode}
	w := NewIngestWorker(nil, converter, "ingest")

	err := w.handle(context.Background(), []byte(`{"file_name":"broken.pdf"}`))
	if !errors.Is(err, app.ErrPDFDecode) {
		t.Fatalf("handle() error = %v, want ErrPDFDecode", err)
	}
}
