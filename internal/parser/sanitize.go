package parser

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizerOnce sync.Once
	htmlSanitizer *bluemonday.Policy
	blockTags     = regexp.MustCompile(`(?i)<(?:br|/p|/div|/tr|/li|/h[1-6])[^>]*>`)
)

// HTMLToText flattens an HTML mail body to plain text for the
// extractors. Block-level closes become newlines first so field
// patterns keep seeing line boundaries, then all remaining markup is
// stripped and entities are decoded.
func HTMLToText(htmlBody string) string {
	sanitizerOnce.Do(func() {
		htmlSanitizer = bluemonday.StrictPolicy()
	})

	withBreaks := blockTags.ReplaceAllString(htmlBody, "\n")
	stripped := htmlSanitizer.Sanitize(withBreaks)
	decoded := html.UnescapeString(stripped)

	lines := strings.Split(decoded, "\n")
	out := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
