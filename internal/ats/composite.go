package ats

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Label is the experience class a résumé is scored under.
type Label string

const (
	LabelFresher    Label = "fresher"
	LabelNonFresher Label = "non_fresher"
)

const freshExperienceMinLen = 150

// IsFresher classifies a résumé as fresher when it has no substantial
// experience section, or when that section only describes internships.
func IsFresher(sections SectionMap) bool {
	exp := strings.TrimSpace(sections.Get(SectionExperience))
	if utf8.RuneCountInString(exp) < freshExperienceMinLen {
		return true
	}
	lower := strings.ToLower(exp)
	return strings.Contains(lower, "intern") &&
		!strings.Contains(lower, "engineer") &&
		!strings.Contains(lower, "developer")
}

// Weights maps component names to their share of the total score.
type Weights map[string]float64

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Apply returns the weighted sum of the component scores.
func (w Weights) Apply(c ComponentScores) float64 {
	total := 0.0
	c.Each(func(name string, v float64) {
		total += w[name] * v
	})
	return total
}

// WeightTable selects the weights for each label.
type WeightTable map[Label]Weights

// DefaultWeights returns the standard weighting. Freshers are judged more
// on projects, internships and extras; experienced candidates on their
// work history.
func DefaultWeights() WeightTable {
	return WeightTable{
		LabelFresher: {
			CompReadability:        0.06,
			CompSkillsTechnical:    0.45,
			CompSkillsNonTechnical: 0.05,
			CompEducation:          0.10,
			CompExperience:         0.00,
			CompProjects:           0.15,
			CompContact:            0.04,
			CompSummary:            0.03,
			CompCertifications:     0.03,
			CompAchievements:       0.04,
			CompInternship:         0.05,
		},
		LabelNonFresher: {
			CompReadability:        0.07,
			CompSkillsTechnical:    0.45,
			CompSkillsNonTechnical: 0.05,
			CompEducation:          0.10,
			CompExperience:         0.10,
			CompProjects:           0.15,
			CompContact:            0.05,
			CompSummary:            0.03,
		},
	}
}

// Map returns the table keyed by plain strings, the shape used in config
// files.
func (t WeightTable) Map() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(t))
	for label, w := range t {
		inner := make(map[string]float64, len(w))
		for name, v := range w {
			inner[name] = v
		}
		out[string(label)] = inner
	}
	return out
}

// WeightTableFromMap builds and validates a table from its config form.
func WeightTableFromMap(m map[string]map[string]float64) (WeightTable, error) {
	t := make(WeightTable, len(m))
	for label, inner := range m {
		w := make(Weights, len(inner))
		for name, v := range inner {
			w[name] = v
		}
		t[Label(label)] = w
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

const weightSumTolerance = 1e-9

// Validate checks that both labels are present, every weight names a known
// component and lies in 0..1, and each branch sums to 1.
func (t WeightTable) Validate() error {
	for _, label := range []Label{LabelFresher, LabelNonFresher} {
		w, ok := t[label]
		if !ok {
			return fmt.Errorf("weights: missing %s branch", label)
		}
		for name, v := range w {
			if _, known := (ComponentScores{}).Get(name); !known {
				return fmt.Errorf("weights: %s: unknown component %q", label, name)
			}
			if v < 0 || v > 1 {
				return fmt.Errorf("weights: %s: %s=%v out of range", label, name, v)
			}
		}
		if sum := w.Sum(); math.Abs(sum-1) > weightSumTolerance {
			return fmt.Errorf("weights: %s sums to %v", label, sum)
		}
	}
	return nil
}

// Composite returns the label-weighted total, clamped to 0..100 and
// rounded to one decimal.
func (t WeightTable) Composite(label Label, c ComponentScores) float64 {
	return round1(clamp(t[label].Apply(c), 0, 100))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
