package ats

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SectionKey names a canonical résumé section.
type SectionKey string

const (
	SectionSummary        SectionKey = "summary"
	SectionSkills         SectionKey = "skills"
	SectionExperience     SectionKey = "experience"
	SectionEducation      SectionKey = "education"
	SectionProjects       SectionKey = "projects"
	SectionCertifications SectionKey = "certifications"
	SectionAchievements   SectionKey = "achievements"
	SectionOther          SectionKey = "other"

	// sectionInternships is scanned for bullets but never produced by the
	// default heading table, which folds internships into experience.
	sectionInternships SectionKey = "internships"
)

// SectionKeys lists the canonical keys in display order.
var SectionKeys = []SectionKey{
	SectionSummary, SectionSkills, SectionExperience, SectionEducation,
	SectionProjects, SectionCertifications, SectionAchievements, SectionOther,
}

// Valid reports whether k is one of the canonical keys.
func (k SectionKey) Valid() bool {
	for _, c := range SectionKeys {
		if c == k {
			return true
		}
	}
	return false
}

// HeadingTable maps a section to the heading lines that open it.
type HeadingTable map[SectionKey][]string

// DefaultHeadings returns the heading aliases for English résumés.
func DefaultHeadings() HeadingTable {
	return HeadingTable{
		SectionSummary:        {"summary", "profile", "objective", "about"},
		SectionSkills:         {"skills", "technical skills", "tech stack", "competencies"},
		SectionExperience:     {"experience", "work experience", "professional experience", "employment", "internship", "internships"},
		SectionEducation:      {"education", "academics", "qualifications"},
		SectionProjects:       {"projects", "project work"},
		SectionCertifications: {"certifications", "certificates", "courses", "licenses"},
		SectionAchievements:   {"achievements", "awards", "honors", "accomplishments"},
	}
}

// compile builds the whole-line heading matcher and the alias lookup.
func (h HeadingTable) compile() (*regexp.Regexp, map[string]SectionKey) {
	lookup := make(map[string]SectionKey)
	var aliases []string
	for _, key := range SectionKeys {
		for _, a := range h[key] {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" {
				continue
			}
			if _, dup := lookup[a]; dup {
				continue
			}
			lookup[a] = key
			aliases = append(aliases, regexp.QuoteMeta(a))
		}
	}
	// longer aliases first so "work experience" is tried before "experience"
	sort.SliceStable(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
	re := regexp.MustCompile(`(?im)^(?:` + strings.Join(aliases, "|") + `)[ \t]*$`)
	return re, lookup
}

// SectionMap holds the body text of every recognised section. Empty fields
// mean the section was not found.
type SectionMap struct {
	Summary        string
	Skills         string
	Experience     string
	Education      string
	Projects       string
	Certifications string
	Achievements   string
	Other          string
}

func (m *SectionMap) field(k SectionKey) *string {
	switch k {
	case SectionSummary:
		return &m.Summary
	case SectionSkills:
		return &m.Skills
	case SectionExperience:
		return &m.Experience
	case SectionEducation:
		return &m.Education
	case SectionProjects:
		return &m.Projects
	case SectionCertifications:
		return &m.Certifications
	case SectionAchievements:
		return &m.Achievements
	case SectionOther:
		return &m.Other
	}
	return nil
}

// Get returns the body of section k, or "" when absent or unknown.
func (m SectionMap) Get(k SectionKey) string {
	if f := m.field(k); f != nil {
		return *f
	}
	return ""
}

// Has reports whether section k is present.
func (m SectionMap) Has(k SectionKey) bool {
	return m.Get(k) != ""
}

// Keys returns the present sections in canonical order.
func (m SectionMap) Keys() []SectionKey {
	var keys []SectionKey
	for _, k := range SectionKeys {
		if m.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of present sections.
func (m SectionMap) Len() int {
	return len(m.Keys())
}

// MarshalJSON encodes the present sections as an object.
func (m SectionMap) MarshalJSON() ([]byte, error) {
	out := make(map[SectionKey]string, len(SectionKeys))
	for _, k := range m.Keys() {
		out[k] = m.Get(k)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an object of section bodies, rejecting unknown keys.
func (m *SectionMap) UnmarshalJSON(data []byte) error {
	var in map[SectionKey]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = SectionMap{}
	for k, v := range in {
		f := m.field(k)
		if f == nil {
			return fmt.Errorf("unknown section %q", k)
		}
		*f = v
	}
	return nil
}

// Sectionizer splits normalized text into sections using whole-line
// headings. It is safe for concurrent use.
type Sectionizer struct {
	re     *regexp.Regexp
	lookup map[string]SectionKey
}

// NewSectionizer compiles the heading table.
func NewSectionizer(heads HeadingTable) *Sectionizer {
	re, lookup := heads.compile()
	return &Sectionizer{re: re, lookup: lookup}
}

// Split returns the sections of text. Text before the first heading is
// dropped and bodies of headings that map to the same section are
// concatenated. Without any heading the whole text is returned under
// SectionOther.
func (s *Sectionizer) Split(text string) SectionMap {
	locs := s.re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return SectionMap{Other: text}
	}

	bodies := make(map[SectionKey]*strings.Builder)
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		key := s.lookup[strings.ToLower(strings.TrimSpace(text[loc[0]:loc[1]]))]
		var body string
		if _, rest, ok := strings.Cut(text[loc[0]:end], "\n"); ok {
			body = rest
		}
		b, ok := bodies[key]
		if !ok {
			b = &strings.Builder{}
			bodies[key] = b
		}
		b.WriteString(strings.TrimSpace(body))
		b.WriteString("\n")
	}

	var m SectionMap
	for key, b := range bodies {
		if f := m.field(key); f != nil {
			*f = strings.TrimSpace(b.String())
		}
	}
	return m
}

// Sectionize is a one-shot Split with the given heading table.
func Sectionize(text string, heads HeadingTable) SectionMap {
	return NewSectionizer(heads).Split(text)
}
