// Package textutil cleans up transcript fragments for display: captions,
// asset titles, and log-friendly summaries.
package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// CleanTitle normalizes a raw name into a presentable title: separators
// become spaces, whitespace collapses, and the result is title-cased.
func CleanTitle(raw string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(raw)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "Untitled"
	}
	return titleCaser.String(strings.ToLower(cleaned))
}

// Truncate shortens s to at most max runes, appending an ellipsis when it
// cuts anything off.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// CaptionFrom builds a short caption from a transcript fragment: first
// sentence-ish chunk, trimmed and truncated.
func CaptionFrom(text string, max int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	for _, stop := range []string{". ", "! ", "? "} {
		if idx := strings.Index(text, stop); idx > 0 {
			text = text[:idx+1]
			break
		}
	}
	return Truncate(strings.TrimSpace(text), max)
}
