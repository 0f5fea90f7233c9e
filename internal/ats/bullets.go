package ats

import (
	"regexp"
	"strings"
)

const monthNames = `jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec|` +
	`january|february|march|april|june|july|august|september|october|november|december`

var (
	bulletRe = regexp.MustCompile(`^\s*(?:[-*•\x{25CF}]|\d+[.)])\s+(.*)$`)
	dateRe   = regexp.MustCompile(`(?i)(?:` + monthNames + `)\s+\d{2,4}|\d{1,2}/\d{4}|\d{4}`)
	numberRe = regexp.MustCompile(`\b\d+(\.\d+)?%?\b`)
)

// bulletSections are scanned for bullets, in this order.
var bulletSections = []SectionKey{SectionExperience, SectionProjects, sectionInternships}

// Bullet is one list item of an experience or project section.
type Bullet struct {
	Section SectionKey `json:"section"`
	Text    string     `json:"text"`
	Dates   []string   `json:"dates"`
}

// CollectBullets returns the list items of a section body with the date
// tokens found in each item, in order of appearance.
func CollectBullets(body string, key SectionKey) []Bullet {
	var out []Bullet
	for _, ln := range strings.Split(body, "\n") {
		m := bulletRe.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[1])
		dates := dateRe.FindAllString(text, -1)
		if dates == nil {
			dates = []string{}
		}
		out = append(out, Bullet{Section: key, Text: text, Dates: dates})
	}
	return out
}

// collectAllBullets gathers bullets from every bullet-bearing section.
// Missing sections contribute nothing.
func collectAllBullets(sections SectionMap) []Bullet {
	bullets := []Bullet{}
	for _, key := range bulletSections {
		if body := sections.Get(key); body != "" {
			bullets = append(bullets, CollectBullets(body, key)...)
		}
	}
	return bullets
}

// hasDash reports whether a line opens with a dash or round bullet, the
// markers the experience and project scorers count.
func hasDash(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•")
}
