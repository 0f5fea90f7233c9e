// Package corpus builds the JD keyword corpus consumed by the lexicon
// loader and opens it from the supported backends.
package corpus

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/jobdesc"

	"github.com/rs/zerolog"
)

var keywordNoise = regexp.MustCompile(`[^a-z0-9\s+#.\-]`)

// Row is one corpus line: a JD file and its keywords.
type Row struct {
	FileName string
	Keywords []string
}

// ExtractKeywords lowercases text, keeps [a-z0-9+#.-] runs and returns the
// sorted unique tokens that occur at least minFreq times, are longer than
// one character and are not stopwords.
func ExtractKeywords(text string, stop ats.WordSet, minFreq int) []string {
	if minFreq < 1 {
		minFreq = 1
	}
	text = keywordNoise.ReplaceAllString(strings.ToLower(text), " ")
	freq := make(map[string]int)
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, ".-")
		if len(tok) <= 1 || stop.Has(tok) {
			continue
		}
		freq[tok]++
	}
	out := make([]string, 0, len(freq))
	for tok, n := range freq {
		if n >= minFreq {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

// FormatKeywordList renders keywords as the list literal stored in the
// keywords column, e.g. ['go', 'sql'].
func FormatKeywordList(keywords []string) string {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = "'" + strings.ReplaceAll(k, "'", `\'`) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// WriteCSV writes rows with a file_name,keywords header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file_name", "keywords"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.FileName, FormatKeywordList(r.Keywords)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithMinFreq drops keywords seen fewer than n times in a JD.
func WithMinFreq(n int) BuilderOption {
	return func(b *Builder) {
		b.minFreq = n
	}
}

func WithLogger(logger zerolog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// Builder turns a JD folder into corpus rows.
type Builder struct {
	store   *jobdesc.Store
	stop    ats.WordSet
	minFreq int
	logger  zerolog.Logger
}

func NewBuilder(store *jobdesc.Store, tables *ats.Tables, opts ...BuilderOption) *Builder {
	b := &Builder{
		store:   store,
		stop:    tables.Stopwords,
		minFreq: 1,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reads every JD in the folder, in name order.
func (b *Builder) Build(ctx context.Context) ([]Row, error) {
	names, err := b.store.List()
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(names))
	for _, name := range names {
		text, err := b.store.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("build corpus: %w", err)
		}
		kw := ExtractKeywords(text, b.stop, b.minFreq)
		b.logger.Debug().Str("jd", name).Int("keywords", len(kw)).Msg("jd keywords extracted")
		rows = append(rows, Row{FileName: name, Keywords: kw})
	}
	b.logger.Info().Str("folder", b.store.Dir()).Int("files", len(rows)).Msg("keyword corpus built")
	return rows, nil
}
