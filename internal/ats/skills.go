package ats

import "strings"

// SkillProfile is the set of skills recognised in a résumé.
type SkillProfile struct {
	All          []string `json:"all"`
	Technical    []string `json:"technical"`
	NonTechnical []string `json:"non_technical"`
}

// Top returns up to n skills from All.
func (p SkillProfile) Top(n int) []string {
	if len(p.All) < n {
		n = len(p.All)
	}
	return append([]string{}, p.All[:n]...)
}

// SkillExtractor matches résumé tokens against a lexicon and the skill
// hint tables.
type SkillExtractor struct {
	tables *Tables
}

// NewSkillExtractor returns an extractor reading the given tables.
func NewSkillExtractor(t *Tables) *SkillExtractor {
	return &SkillExtractor{tables: t}
}

// Extract builds the skill profile of a token stream. Tokens are first
// mapped through the alias table; a token is kept when the lexicon or one
// of the résumé hint sets knows it. Multi-word skill phrases are detected
// in the original token stream and always count as technical, so an alias
// such as "ml" only survives when the lexicon holds its target.
func (e *SkillExtractor) Extract(tokens []string, lex *Lexicon) SkillProfile {
	t := e.tables
	kept := make(WordSet)
	for _, tok := range tokens {
		c := t.canonical(strings.ToLower(tok))
		if lex.Has(c) || t.SkillTechnical.Has(c) || t.SkillSoft.Has(c) {
			kept[c] = struct{}{}
		}
	}

	phrases := make(WordSet)
	joined := " " + strings.Join(tokens, " ") + " "
	for _, ph := range t.SkillPhrases {
		if strings.Contains(joined, " "+ph+" ") {
			phrases[ph] = struct{}{}
			kept[ph] = struct{}{}
		}
	}

	profile := SkillProfile{All: sortedKeys(kept), Technical: []string{}, NonTechnical: []string{}}
	for _, w := range profile.All {
		if t.SkillTechnical.Has(w) || phrases.Has(w) {
			profile.Technical = append(profile.Technical, w)
		}
		if t.SkillSoft.Has(w) {
			profile.NonTechnical = append(profile.NonTechnical, w)
		}
	}
	return profile
}
