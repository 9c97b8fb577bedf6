package app

import "errors"

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrMessageEmpty  = errors.New("message content is empty")
	ErrNotPDF        = errors.New("file must be a PDF")
	ErrPDFDecode     = errors.New("pdf conversion failed")
	ErrUpstream      = errors.New("completion request failed")
	ErrAsyncDisabled = errors.New("async ingestion is not enabled")
)

// PageLimits bounds the page size callers may request from listings.
type PageLimits struct {
	Default int
	Max     int
}

func (l PageLimits) clamp(limit int) int {
	if limit <= 0 {
		limit = l.Default
	}
	if limit <= 0 {
		limit = 10
	}
	if l.Max > 0 && limit > l.Max {
		limit = l.Max
	}
	return limit
}
