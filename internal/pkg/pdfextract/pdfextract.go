package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

var ErrEmptyFile = errors.New("pdf file is empty")

// Extractor decodes PDFs page by page with ledongthuc/pdf.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// ExtractPages returns the plain text of every page in order. A page that
// cannot be decoded yields "" instead of failing the whole document; only a
// file that cannot be opened as a PDF at all is an error.
func (e *Extractor) ExtractPages(r io.Reader) ([]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf failed: %w", err)
	}
	if len(b) == 0 {
		return nil, ErrEmptyFile
	}

	pdfReader, err := openReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	numPages := pdfReader.NumPage()
	pages := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		pages[i-1] = pageText(pdfReader, i)
	}
	return pages, nil
}

// openReader guards against the decoder panicking on malformed input.
func openReader(r io.ReaderAt, size int64) (reader *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reader, err = nil, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(r, size)
}

func pageText(reader *pdf.Reader, index int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	page := reader.Page(index)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
