// Package alttext sanitizes model output into usable alt text.
package alttext

import (
	"regexp"
	"strings"
)

// MaxLength is the alt text length cap, measured in Unicode code points.
const MaxLength = 120

// truncateAt leaves room for the ellipsis marker within MaxLength.
const truncateAt = 117

const ellipsis = "..."

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	prefixPattern = regexp.MustCompile(`(?i)^(Image of|Photo of|Picture of)\s+`)
)

// Normalize strips markup, removes a leading "Image of/Photo of/Picture of"
// phrase, and enforces the length cap. Deterministic and idempotent for
// already-normalized input; empty input yields empty output.
func Normalize(content string) string {
	text := strings.TrimSpace(tagPattern.ReplaceAllString(content, ""))
	text = prefixPattern.ReplaceAllString(text, "")

	runes := []rune(text)
	if len(runes) > MaxLength {
		text = string(runes[:truncateAt]) + ellipsis
	}
	return text
}
