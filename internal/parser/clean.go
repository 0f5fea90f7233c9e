package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	multiSpace   = regexp.MustCompile(`\s+`)
	cleanedChars = regexp.MustCompile(`[^a-zA-Z0-9.,;:!?()/%$@ ]`)
)

// DefaultPreviewLen is the number of characters returned as text preview.
const DefaultPreviewLen = 300

// CleanText flattens extracted résumé text for storage and embedding: all
// whitespace runs become one space, characters outside a small ASCII set are
// dropped and the result is lowercased.
func CleanText(text string) string {
	text = multiSpace.ReplaceAllString(text, " ")
	text = cleanedChars.ReplaceAllString(text, "")
	return strings.TrimSpace(strings.ToLower(text))
}

// Preview returns at most n characters of text.
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n])
}
