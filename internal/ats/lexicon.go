package ats

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var errShortRow = errors.New("row has no keywords field")

// KeywordsColumn is the corpus column holding each row's keyword list.
const KeywordsColumn = "keywords"

// LexiconSource is a readable keyword corpus: a CSV document with a
// "keywords" column of list literals.
type LexiconSource interface {
	// Key identifies the source, e.g. a file path or object URI.
	Key() string
	// Open returns a reader over the whole corpus.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a corpus from the local filesystem.
type FileSource string

func (f FileSource) Key() string { return "file://" + string(f) }

func (f FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	return os.Open(string(f))
}

// Lexicon is an immutable vocabulary set built from a keyword corpus.
type Lexicon struct {
	words   WordSet
	sorted  []string
	Rows    int
	Skipped int
}

// NewLexicon builds a lexicon from already-clean words.
func NewLexicon(words ...string) *Lexicon {
	set := NewWordSet(words...)
	return &Lexicon{words: set, sorted: sortedKeys(set)}
}

// Has reports whether w is in the vocabulary.
func (l *Lexicon) Has(w string) bool {
	if l == nil {
		return false
	}
	return l.words.Has(w)
}

// Len returns the vocabulary size.
func (l *Lexicon) Len() int {
	if l == nil {
		return 0
	}
	return len(l.words)
}

// Words returns a sorted copy of the vocabulary.
func (l *Lexicon) Words() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.sorted...)
}

// ParseLexicon reads a keyword corpus. Rows whose keyword list is not a
// well-formed list of strings are skipped and reported to onSkip, which may
// be nil. A corpus without a keywords column is unusable.
func ParseLexicon(r io.Reader, t *Tables, onSkip func(error)) (*Lexicon, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return NewLexicon(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == KeywordsColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("missing %q column", KeywordsColumn)
	}

	words := make(WordSet)
	lex := &Lexicon{}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lex.Rows++
		var pe *csv.ParseError
		if err != nil && !errors.As(err, &pe) {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		if err == nil && col >= len(rec) {
			err = errShortRow
		}
		var kws []string
		if err == nil {
			kws, err = ParseKeywordList(rec[col])
		}
		if err != nil {
			lex.Skipped++
			if onSkip != nil {
				onSkip(NewRowError("corpus", row, err))
			}
			continue
		}
		for _, kw := range kws {
			w := strings.ToLower(strings.TrimSpace(kw))
			if w == "" || t.LexiconNoise.Has(w) || t.Stopwords.Has(w) || !isAlpha(w) {
				continue
			}
			words[w] = struct{}{}
		}
	}
	lex.words = words
	lex.sorted = sortedKeys(words)
	return lex, nil
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func sortedKeys(s WordSet) []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// LexiconOption configures a LexiconLoader.
type LexiconOption func(*LexiconLoader)

// WithLexiconCacheTTL keeps loaded lexicons for ttl. Zero disables caching.
func WithLexiconCacheTTL(ttl time.Duration) LexiconOption {
	return func(l *LexiconLoader) {
		l.ttl = ttl
	}
}

// WithLexiconLogger sets the logger used to report skipped rows.
func WithLexiconLogger(logger zerolog.Logger) LexiconOption {
	return func(l *LexiconLoader) {
		l.logger = logger
	}
}

type cachedLexicon struct {
	lex      *Lexicon
	loadedAt time.Time
}

// LexiconLoader loads lexicons and optionally caches them by source key.
// A lexicon is published to the cache only once fully built, and concurrent
// loads of one key share a single read.
type LexiconLoader struct {
	tables *Tables
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedLexicon
	group singleflight.Group
}

// NewLexiconLoader creates a loader filtering words with the given tables.
func NewLexiconLoader(t *Tables, opts ...LexiconOption) *LexiconLoader {
	l := &LexiconLoader{
		tables: t,
		logger: zerolog.Nop(),
		now:    time.Now,
		cache:  make(map[string]cachedLexicon),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the lexicon of src. Any failure to open or read the source
// yields an error matching ErrLexiconUnavailable.
func (l *LexiconLoader) Load(ctx context.Context, src LexiconSource) (*Lexicon, error) {
	if src == nil {
		return nil, NewLexiconError("", errors.New("no lexicon source configured"))
	}
	key := src.Key()
	if lex, ok := l.cached(key); ok {
		return lex, nil
	}

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		if lex, ok := l.cached(key); ok {
			return lex, nil
		}
		lex, err := l.read(ctx, src)
		if err != nil {
			return nil, err
		}
		if l.ttl > 0 {
			l.mu.Lock()
			l.cache[key] = cachedLexicon{lex: lex, loadedAt: l.now()}
			l.mu.Unlock()
		}
		return lex, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Lexicon), nil
}

func (l *LexiconLoader) cached(key string) (*Lexicon, bool) {
	if l.ttl <= 0 {
		return nil, false
	}
	l.mu.RLock()
	c, ok := l.cache[key]
	l.mu.RUnlock()
	if !ok || l.now().Sub(c.loadedAt) > l.ttl {
		return nil, false
	}
	return c.lex, true
}

func (l *LexiconLoader) read(ctx context.Context, src LexiconSource) (*Lexicon, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewLexiconError(src.Key(), err)
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, NewLexiconError(src.Key(), err)
	}
	defer rc.Close()

	lex, err := ParseLexicon(rc, l.tables, func(err error) {
		l.logger.Debug().Err(err).Str("source", src.Key()).Msg("skipping lexicon row")
	})
	if err != nil {
		return nil, NewLexiconError(src.Key(), err)
	}
	l.logger.Debug().
		Str("source", src.Key()).
		Int("rows", lex.Rows).
		Int("skipped", lex.Skipped).
		Int("words", lex.Len()).
		Msg("lexicon loaded")
	return lex, nil
}
