package ats

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	sectionPresenceMinLen = 30
	expectedProjects      = 2.0
	expectedBullets       = 3.0
	expectedProjectSkills = 3.0
)

// Component names as they appear in results and weight tables.
const (
	CompReadability        = "readability"
	CompSkillsTechnical    = "skills_technical"
	CompSkillsNonTechnical = "skills_non_technical"
	CompEducation          = "education"
	CompExperience         = "experience"
	CompProjects           = "projects"
	CompContact            = "contact"
	CompSummary            = "summary"
	CompCertifications     = "certifications"
	CompAchievements       = "achievements"
	CompInternship         = "internship"
)

// ComponentNames lists every component in reporting order.
var ComponentNames = []string{
	CompReadability, CompSkillsTechnical, CompSkillsNonTechnical, CompEducation,
	CompExperience, CompProjects, CompContact, CompSummary, CompCertifications,
	CompAchievements, CompInternship,
}

// ComponentScores holds every 0..100 sub-score of an analysis.
type ComponentScores struct {
	Readability        float64 `json:"readability"`
	SkillsTechnical    float64 `json:"skills_technical"`
	SkillsNonTechnical float64 `json:"skills_non_technical"`
	Education          float64 `json:"education"`
	Experience         float64 `json:"experience"`
	Projects           float64 `json:"projects"`
	Contact            float64 `json:"contact"`
	Summary            float64 `json:"summary"`
	Certifications     float64 `json:"certifications"`
	Achievements       float64 `json:"achievements"`
	Internship         float64 `json:"internship"`
}

func (c *ComponentScores) field(name string) *float64 {
	switch name {
	case CompReadability:
		return &c.Readability
	case CompSkillsTechnical:
		return &c.SkillsTechnical
	case CompSkillsNonTechnical:
		return &c.SkillsNonTechnical
	case CompEducation:
		return &c.Education
	case CompExperience:
		return &c.Experience
	case CompProjects:
		return &c.Projects
	case CompContact:
		return &c.Contact
	case CompSummary:
		return &c.Summary
	case CompCertifications:
		return &c.Certifications
	case CompAchievements:
		return &c.Achievements
	case CompInternship:
		return &c.Internship
	}
	return nil
}

// Get returns the named score and whether the name is known.
func (c ComponentScores) Get(name string) (float64, bool) {
	if f := c.field(name); f != nil {
		return *f, true
	}
	return 0, false
}

// Each calls fn for every component in reporting order.
func (c ComponentScores) Each(fn func(name string, v float64)) {
	for _, n := range ComponentNames {
		v, _ := c.Get(n)
		fn(n, v)
	}
}

// Clamp forces every score into 0..100; NaN becomes 0.
func (c *ComponentScores) Clamp() {
	for _, n := range ComponentNames {
		f := c.field(n)
		*f = clamp(*f, 0, 100)
	}
}

// SkillCoverage is the outcome of matching résumé skills to JD terms.
type SkillCoverage struct {
	Technical    float64
	NonTechnical float64
	Matched      []string
	Missing      []string
}

// ComponentScorer computes the per-dimension scores of a résumé.
type ComponentScorer struct {
	tables *Tables
}

// NewComponentScorer returns a scorer reading the given tables.
func NewComponentScorer(t *Tables) *ComponentScorer {
	return &ComponentScorer{tables: t}
}

// SectionPresence is 100 when the section holds more than a token amount
// of text.
func (s *ComponentScorer) SectionPresence(sections SectionMap, key SectionKey) float64 {
	if utf8.RuneCountInString(strings.TrimSpace(sections.Get(key))) > sectionPresenceMinLen {
		return 100
	}
	return 0
}

// Skills measures how many of the JD's technical and soft terms the résumé
// covers. A JD that asks for nothing in a category is fully covered.
func (s *ComponentScorer) Skills(profile SkillProfile, terms JDTermSet) SkillCoverage {
	jdTech, jdSoft := terms.split(s.tables)
	haveTech := NewWordSet(profile.Technical...)
	haveSoft := NewWordSet(profile.NonTechnical...)

	techMatch, techMiss := partition(jdTech, haveTech)
	softMatch, softMiss := partition(jdSoft, haveSoft)

	return SkillCoverage{
		Technical:    coverage(len(techMatch), len(jdTech)),
		NonTechnical: coverage(len(softMatch), len(jdSoft)),
		Matched:      append(techMatch, softMatch...),
		Missing:      append(techMiss, softMiss...),
	}
}

// partition splits sorted wanted terms into those present in have and the rest.
func partition(wanted []string, have WordSet) (matched, missing []string) {
	matched, missing = []string{}, []string{}
	for _, w := range wanted {
		if have.Has(w) {
			matched = append(matched, w)
		} else {
			missing = append(missing, w)
		}
	}
	return matched, missing
}

func coverage(matched, wanted int) float64 {
	if wanted == 0 {
		return 100
	}
	return round1(float64(matched) / float64(wanted) * 100)
}

// Projects rewards a projects section with several entries, quantified
// results and technical skills named in context.
func (s *ComponentScorer) Projects(sections SectionMap, rawTokens []string) float64 {
	txt := sections.Get(SectionProjects)
	if txt == "" {
		return 0
	}
	projects := 0
	for _, ln := range strings.Split(txt, "\n") {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		if strings.Contains(strings.ToLower(ln), "project") || hasDash(ln) {
			projects++
		}
	}
	projects = max(projects, 1)

	lower := strings.ToLower(txt)
	used := make(WordSet)
	for _, tok := range rawTokens {
		if s.tables.Technical.Has(tok) && strings.Contains(lower, tok) {
			used[tok] = struct{}{}
		}
	}

	score := math.Min(1, float64(projects)/expectedProjects) * 60
	if numberRe.MatchString(txt) {
		score += 20
	}
	score += math.Min(1, float64(len(used))/expectedProjectSkills) * 20
	return round1(clamp(score, 0, 100))
}

// Experience rewards bulleted entries, dates and quantified results.
func (s *ComponentScorer) Experience(sections SectionMap) float64 {
	txt := sections.Get(SectionExperience)
	if txt == "" {
		return 0
	}
	bullets := 0
	for _, ln := range strings.Split(txt, "\n") {
		if hasDash(ln) {
			bullets++
		}
	}
	score := 50.0
	if bullets < expectedBullets {
		score = float64(bullets) / expectedBullets * 50
	}
	if dateRe.MatchString(txt) {
		score += 25
	}
	if numberRe.MatchString(txt) {
		score += 25
	}
	return round1(clamp(score, 0, 100))
}

// Internship is 100 when any section mentions an internship.
func (s *ComponentScorer) Internship(sections SectionMap) float64 {
	for _, k := range sections.Keys() {
		if strings.Contains(strings.ToLower(sections.Get(k)), "intern") {
			return 100
		}
	}
	return 0
}
