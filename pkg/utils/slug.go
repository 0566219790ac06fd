package utils

import (
	"strings"

	"github.com/gosimple/slug"
)

// MaxRunNameLength caps run names so they stay readable in logs
const MaxRunNameLength = 64

// NormalizeSlug creates a URL-friendly slug using the gosimple/slug library
func NormalizeSlug(text string) string {
	if text == "" {
		return ""
	}
	return slug.Make(text)
}

// RunName builds a short readable name for a keeper run from the target URL.
// The scheme is dropped since nearly every target shares it.
func RunName(targetURL string) string {
	text := targetURL
	if i := strings.Index(text, "://"); i >= 0 {
		text = text[i+3:]
	}

	name := NormalizeSlug(text)
	if len(name) > MaxRunNameLength {
		name = strings.TrimRight(name[:MaxRunNameLength], "-")
	}
	if name == "" {
		return "run"
	}
	return name
}
