package ats

import (
	"math"
	"regexp"
	"strings"
)

var sentenceSplitRe = regexp.MustCompile(`[.!?;\n]+`)

// ReadabilityMetrics summarises sentence length and list usage.
type ReadabilityMetrics struct {
	Words          int     `json:"words"`
	Sentences      int     `json:"sentences"`
	AvgSentenceLen float64 `json:"avg_sentence_len"`
	BulletRatio    float64 `json:"bullet_ratio"`
}

// MeasureReadability computes readability statistics of text given the
// bullets collected from it.
func MeasureReadability(text string, bullets []Bullet) ReadabilityMetrics {
	sentences := 0
	for _, s := range sentenceSplitRe.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	lines := 0
	for _, ln := range strings.Split(text, "\n") {
		if strings.TrimSpace(ln) != "" {
			lines++
		}
	}
	words := countWords(text)
	return ReadabilityMetrics{
		Words:          words,
		Sentences:      sentences,
		AvgSentenceLen: float64(words) / float64(max(1, sentences)),
		BulletRatio:    math.Min(1, float64(len(bullets))/float64(max(1, lines))),
	}
}

// ReadabilityScore maps metrics to 0..100. Sentences of 10 to 22 words,
// at least 15% bullet lines and 250 to 900 words score full marks.
func ReadabilityScore(m ReadabilityMetrics) float64 {
	var sentence float64
	switch avg := m.AvgSentenceLen; {
	case avg <= 0:
		sentence = 0
	case avg >= 10 && avg <= 22:
		sentence = 100
	default:
		sentence = math.Max(0, 100-6*math.Min(math.Abs(avg-16), 16))
	}

	var bullet float64
	if m.BulletRatio > 0 {
		bullet = math.Min(100, m.BulletRatio/0.15*100)
	}

	var words float64
	switch w := float64(m.Words); {
	case w >= 250 && w <= 900:
		words = 100
	case w < 250:
		words = w / 250 * 100
	default:
		words = math.Max(40, 100-math.Min(w-900, 600)/6)
	}

	return round1(clamp(0.45*sentence+0.25*bullet+0.30*words, 0, 100))
}
