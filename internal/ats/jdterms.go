package ats

import (
	"regexp"
	"sort"
	"strings"
)

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRunRe = regexp.MustCompile(`\s+`)
)

// JDTermSet is the sorted set of salient terms of one job description.
type JDTermSet []string

// Has reports whether term is in the set.
func (s JDTermSet) Has(term string) bool {
	i := sort.SearchStrings(s, term)
	return i < len(s) && s[i] == term
}

// ExtractJDTerms derives the important terms of a JD: cleaned tokens
// longer than two characters that are neither stopwords nor posting
// boilerplate, plus every known phrase the JD mentions.
func ExtractJDTerms(jd string, t *Tables) JDTermSet {
	lower := strings.ToLower(jd)
	clean := strings.TrimSpace(spaceRunRe.ReplaceAllString(nonAlnumRe.ReplaceAllString(lower, " "), " "))

	terms := make(WordSet)
	for _, tok := range strings.Fields(clean) {
		if len(tok) <= 2 || t.Stopwords.Has(tok) || t.Noise.Has(tok) {
			continue
		}
		terms[tok] = struct{}{}
	}
	for _, ph := range t.TermPhrases {
		if strings.Contains(lower, ph) {
			terms[ph] = struct{}{}
		}
	}
	return JDTermSet(sortedKeys(terms))
}

// split partitions the terms into technical and soft requirements.
func (s JDTermSet) split(t *Tables) (tech, soft []string) {
	for _, term := range s {
		if t.isTechnicalTerm(term) {
			tech = append(tech, term)
		}
		if t.Soft.Has(term) {
			soft = append(soft, term)
		}
	}
	return tech, soft
}
