// Package retrieval assembles the grounding context handed to the
// completion service for a chat turn.
package retrieval

import (
	"context"
	"strings"

	"docchat/internal/config"
	"docchat/internal/model"
	"docchat/internal/repository"
)

const (
	// DefaultSnippetMaxChars bounds each document's contribution in filtered
	// mode, counted in runes.
	DefaultSnippetMaxChars = 500
	TruncationMarker       = "..."
)

// Corpus is the read side of the document store.
type Corpus interface {
	All(ctx context.Context) ([]model.Document, error)
	AllText(ctx context.Context) (string, error)
}

// Selector picks the context for a query. Implementations may rank however
// they like; the chat orchestrator only sees the resulting text.
type Selector interface {
	Select(ctx context.Context, query string) (string, error)
}

// New returns the selector configured by cfg.Mode.
func New(cfg config.ContextConfig, corpus Corpus) Selector {
	full := &FullCorpus{corpus: corpus}
	if cfg.Mode != config.ContextModeFiltered {
		return full
	}
	filtered := NewSubstring(corpus, cfg.SnippetMaxChars)
	if cfg.FallbackToFull {
		filtered.WithFallback(full)
	}
	return filtered
}

// FullCorpus hands every document to the model. It enforces no size cap.
type FullCorpus struct {
	corpus Corpus
}

func NewFullCorpus(corpus Corpus) *FullCorpus {
	return &FullCorpus{corpus: corpus}
}

func (s *FullCorpus) Select(ctx context.Context, _ string) (string, error) {
	return s.corpus.AllText(ctx)
}

// Substring keeps documents whose text contains the query, ignoring case,
// and truncates each one to maxChars runes.
type Substring struct {
	corpus   Corpus
	maxChars int
	fallback Selector
}

func NewSubstring(corpus Corpus, maxChars int) *Substring {
	if maxChars <= 0 {
		maxChars = DefaultSnippetMaxChars
	}
	return &Substring{corpus: corpus, maxChars: maxChars}
}

// WithFallback sets the selector used when no document matches. Without one
// an unmatched query produces an empty context.
func (s *Substring) WithFallback(fallback Selector) *Substring {
	s.fallback = fallback
	return s
}

func (s *Substring) Select(ctx context.Context, query string) (string, error) {
	docs, err := s.corpus.All(ctx)
	if err != nil {
		return "", err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	blocks := make([]string, 0, len(docs))
	for _, doc := range docs {
		if !strings.Contains(strings.ToLower(doc.Content), needle) {
			continue
		}
		blocks = append(blocks, repository.DocumentMarker(doc.Name)+Snippet(doc.Content, s.maxChars))
	}

	if len(blocks) == 0 && s.fallback != nil {
		return s.fallback.Select(ctx, query)
	}
	return strings.Join(blocks, "\n\n"), nil
}

// Snippet cuts text to at most maxChars runes and appends TruncationMarker
// when anything was dropped.
func Snippet(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars]) + TruncationMarker
}
