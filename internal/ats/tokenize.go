package ats

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`[A-Za-z][A-Za-z0-9\-\+\.#]*`)

// Tokenizer extracts lowercase word tokens, keeping symbols used in skill
// names such as "c++", "node.js" and "c#".
type Tokenizer struct {
	stop WordSet
}

// NewTokenizer returns a Tokenizer that drops the given stopwords.
func NewTokenizer(stop WordSet) *Tokenizer {
	return &Tokenizer{stop: stop}
}

// Tokenize returns the tokens of text in order, without stopwords and
// single-character tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	raw := tokenRe.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.ToLower(tok)
		if len(tok) <= 1 || t.stop.Has(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// RawTokens returns every token of text lowercased, with no filtering.
func RawTokens(text string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	if raw == nil {
		return []string{}
	}
	return raw
}

// countWords counts token-pattern matches.
func countWords(text string) int {
	return len(tokenRe.FindAllStringIndex(text, -1))
}

var defaultTokenizer = NewTokenizer(DefaultTables().Stopwords)

// Tokenize tokenizes text with the default English stopwords.
func Tokenize(text string) []string {
	return defaultTokenizer.Tokenize(text)
}
