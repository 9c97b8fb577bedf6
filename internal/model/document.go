package model

// Document is a normalized text file in the corpus. Name is unique and is
// also the on-disk file name.
type Document struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// IngestJob asks the ingest worker to convert a PDF already stored in the
// transient upload folder. FileName is the uploaded name the document is
// named after; StagedFile is the unique file holding the bytes and falls
// back to FileName when empty.
type IngestJob struct {
	FileName   string `json:"file_name"`
	StagedFile string `json:"staged_file,omitempty"`
}
