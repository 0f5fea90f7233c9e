package ats

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailRe    = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9.-]+`)
	phoneRe    = regexp.MustCompile(`(?:\+?91[-.\s]?)?(?:\d{10}|\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4})`)
	linkedInRe = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com/\S+`)
	gitHubRe   = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?github\.com/\S+`)
	kaggleRe   = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?kaggle\.com/\S+`)
	nameSepRe  = regexp.MustCompile(`[\s,|•]+`)
)

const (
	nameScanLines = 6
	nameMaxLen    = 60
)

// ContactLinks holds the first profile link found per site.
type ContactLinks struct {
	LinkedIn *string `json:"linkedin"`
	GitHub   *string `json:"github"`
	Kaggle   *string `json:"kaggle"`
}

// ContactInfo is the contact block detected in a résumé. Absent fields are nil.
type ContactInfo struct {
	Name  *string      `json:"name"`
	Email *string      `json:"email"`
	Phone *string      `json:"phone"`
	Links ContactLinks `json:"links"`
}

// ExtractContact pulls name, e-mail, phone and profile links from
// normalized text. The first match in document order wins for every field.
func ExtractContact(text string) ContactInfo {
	return ContactInfo{
		Name:  guessName(text),
		Email: firstMatch(emailRe, text),
		Phone: firstMatch(phoneRe, text),
		Links: ContactLinks{
			LinkedIn: firstMatch(linkedInRe, text),
			GitHub:   firstMatch(gitHubRe, text),
			Kaggle:   firstMatch(kaggleRe, text),
		},
	}
}

func firstMatch(re *regexp.Regexp, text string) *string {
	m := re.FindString(text)
	if m == "" {
		return nil
	}
	return &m
}

// guessName looks for a short line of capitalised words near the top.
func guessName(text string) *string {
	lines := strings.Split(text, "\n")
	if len(lines) > nameScanLines {
		lines = lines[:nameScanLines]
	}
	for _, ln := range lines {
		lower := strings.ToLower(ln)
		if emailRe.MatchString(ln) || strings.Contains(lower, "linkedin") || strings.Contains(lower, "github") {
			continue
		}
		var tokens []string
		caps := 0
		for _, t := range nameSepRe.Split(ln, -1) {
			if t == "" {
				continue
			}
			tokens = append(tokens, t)
			if r, _ := utf8.DecodeRuneInString(t); unicode.IsUpper(r) {
				caps++
			}
		}
		name := strings.Join(tokens, " ")
		if caps >= 2 && caps <= 4 && utf8.RuneCountInString(name) <= nameMaxLen {
			return &name
		}
	}
	return nil
}

// Score returns the contact completeness score: 50 for an e-mail, 30 for a
// phone number and 20 for a LinkedIn profile.
func (c ContactInfo) Score() float64 {
	score := 0.0
	if c.Email != nil && *c.Email != "" {
		score += 50
	}
	if c.Phone != nil && *c.Phone != "" {
		score += 30
	}
	if c.Links.LinkedIn != nil && *c.Links.LinkedIn != "" {
		score += 20
	}
	return round1(clamp(score, 0, 100))
}
