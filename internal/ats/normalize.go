package ats

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	multiSpaceRe = regexp.MustCompile(`[ \t]+`)
	junkLineRe   = regexp.MustCompile(`(?i)^\s*(page\s*\d+|resume|curriculum vitae|cv)\s*$`)
)

// Normalize cleans text produced by a document extractor: line endings are
// unified, runs of blanks collapsed, empty and header/footer lines dropped,
// and soft-wrapped lines joined back together.
//
// Normalize is idempotent.
func Normalize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := make([]string, 0, strings.Count(raw, "\n")+1)
	for _, ln := range strings.Split(raw, "\n") {
		ln = strings.TrimSpace(multiSpaceRe.ReplaceAllString(ln, " "))
		if ln == "" || junkLineRe.MatchString(ln) {
			continue
		}
		if n := len(lines); n > 0 && !endsSentence(lines[n-1]) && startsLower(ln) {
			lines[n-1] += " " + ln
			continue
		}
		lines = append(lines, ln)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func endsSentence(s string) bool {
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':':
		return true
	}
	return false
}

func startsLower(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsLower(r)
}
