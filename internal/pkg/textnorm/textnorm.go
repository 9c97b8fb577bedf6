// Package textnorm turns raw per-page PDF text into clean Markdown-like prose.
package textnorm

import (
	"regexp"
	"strings"
)

const pageSeparator = "\n\n"

var (
	hyphenBreak = regexp.MustCompile(`(\pL)-[ \t]*\n\s*(\pL)`)
	blankRuns   = regexp.MustCompile(`[ \t]*\n(?:[ \t]*\n)+[ \t]*`)
)

// Normalize joins the pages with a blank line, repairs words hyphenated
// across a line break, collapses runs of blank lines into one and trims the
// result. Pages without text are dropped, so an all-empty input yields "".
func Normalize(pages []string) string {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		page = strings.TrimSpace(strings.ReplaceAll(page, "\r\n", "\n"))
		if page == "" {
			continue
		}
		parts = append(parts, page)
	}

	text := strings.Join(parts, pageSeparator)
	text = hyphenBreak.ReplaceAllString(text, "${1}${2}")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
