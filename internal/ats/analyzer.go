package ats

import (
	"context"
	"fmt"
	"strings"

	"ats-scorer-go/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("ats-scorer-go/ats")

const skillsTopN = 10

// SimilarityScorer returns the semantic similarity of two texts in 0..1.
// Implementations return 0 when either text is blank.
type SimilarityScorer interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Preprocessed is everything derived from a résumé before it is compared
// with a job description.
type Preprocessed struct {
	Text        string             `json:"-"`
	Contact     ContactInfo        `json:"contact"`
	Sections    SectionMap         `json:"sections"`
	Bullets     []Bullet           `json:"bullets"`
	Tokens      []string           `json:"tokens"`
	Skills      SkillProfile       `json:"skills"`
	Readability ReadabilityMetrics `json:"readability"`
}

// AnalyzeRequest is one scoring request. Fresher overrides the automatic
// classification when set.
type AnalyzeRequest struct {
	ResumeText string
	JDText     string
	Lexicon    LexiconSource
	Fresher    *bool
}

// AtsResult is the outcome of scoring a résumé against a job description.
// Similarity is reported for information only and is not part of
// TotalScore.
type AtsResult struct {
	Label         Label           `json:"label"`
	TotalScore    float64         `json:"total_score"`
	Components    ComponentScores `json:"components"`
	MatchedSkills []string        `json:"matched_skills"`
	MissingSkills []string        `json:"missing_skills"`
	Contact       ContactInfo     `json:"contact"`
	SkillsTop     []string        `json:"skills_top"`
	Similarity    *float64        `json:"similarity,omitempty"`
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTables replaces the default vocabulary tables.
func WithTables(t *Tables) Option {
	return func(a *Analyzer) {
		a.tables = t
	}
}

// WithWeights replaces the default weight table.
func WithWeights(w WeightTable) Option {
	return func(a *Analyzer) {
		a.weights = w
	}
}

// WithLexiconLoader shares a loader, and its cache, between analyzers.
func WithLexiconLoader(l *LexiconLoader) Option {
	return func(a *Analyzer) {
		a.loader = l
	}
}

// WithSimilarity enables the informational similarity score.
func WithSimilarity(s SimilarityScorer) Option {
	return func(a *Analyzer) {
		a.similarity = s
	}
}

// WithLogger sets the analyzer logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// Analyzer runs the résumé scoring pipeline. It holds only read-only state
// and is safe for concurrent use.
type Analyzer struct {
	tables     *Tables
	weights    WeightTable
	loader     *LexiconLoader
	similarity SimilarityScorer
	logger     zerolog.Logger

	sectionizer *Sectionizer
	tokenizer   *Tokenizer
	skills      *SkillExtractor
	scorer      *ComponentScorer
}

// NewAnalyzer builds an analyzer, validating its tables and weights.
func NewAnalyzer(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		tables:  DefaultTables(),
		weights: DefaultWeights(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.tables.Validate(); err != nil {
		return nil, err
	}
	if err := a.weights.Validate(); err != nil {
		return nil, err
	}
	if a.loader == nil {
		a.loader = NewLexiconLoader(a.tables, WithLexiconLogger(a.logger))
	}
	a.sectionizer = NewSectionizer(a.tables.Headings)
	a.tokenizer = NewTokenizer(a.tables.Stopwords)
	a.skills = NewSkillExtractor(a.tables)
	a.scorer = NewComponentScorer(a.tables)
	return a, nil
}

// Tables returns the analyzer's vocabulary.
func (a *Analyzer) Tables() *Tables {
	return a.tables
}

// Preprocess loads the lexicon from src and derives contact details,
// sections, bullets, tokens, skills and readability from a résumé.
func (a *Analyzer) Preprocess(ctx context.Context, resumeText string, src LexiconSource) (*Preprocessed, error) {
	lex, err := a.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return a.preprocess(resumeText, lex), nil
}

// PreprocessWith runs preprocessing against an already loaded lexicon.
func (a *Analyzer) PreprocessWith(resumeText string, lex *Lexicon) *Preprocessed {
	return a.preprocess(resumeText, lex)
}

func (a *Analyzer) preprocess(raw string, lex *Lexicon) *Preprocessed {
	text := Normalize(raw)
	sections := a.sectionizer.Split(text)
	bullets := collectAllBullets(sections)
	tokens := a.tokenizer.Tokenize(text)
	return &Preprocessed{
		Text:        text,
		Contact:     ExtractContact(text),
		Sections:    sections,
		Bullets:     bullets,
		Tokens:      tokens,
		Skills:      a.skills.Extract(tokens, lex),
		Readability: MeasureReadability(text, bullets),
	}
}

// Analyze scores a résumé against a job description. It fails only when
// the lexicon cannot be loaded; blank inputs produce low scores.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AtsResult, error) {
	ctx, span := tracer.Start(ctx, "ats.Analyze")
	defer span.End()

	lex, err := a.loader.Load(ctx, req.Lexicon)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLexicon)
		return nil, fmt.Errorf("analyze: %w", err)
	}
	span.SetAttributes(attribute.Int("ats.lexicon.words", lex.Len()))

	result := a.score(req, lex)
	span.SetAttributes(
		attribute.String("ats.jd.excerpt", tracing.SafeResumeContent(req.JDText)),
		attribute.String("ats.label", string(result.Label)),
		attribute.Float64("ats.total_score", result.TotalScore),
	)
	if email := result.Contact.Email; email != nil {
		span.SetAttributes(attribute.String("ats.contact.email",
			tracing.SafeAttributeValue("contact.email", *email, tracing.DefaultMaxLength)))
	}

	if a.similarity != nil {
		sim, err := a.similarity.Similarity(ctx, req.ResumeText, req.JDText)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeExternal)
			a.logger.Warn().Err(err).Msg("similarity unavailable, reporting heuristic score only")
		} else {
			v := round2(clamp(sim*100, 0, 100))
			result.Similarity = &v
		}
	}
	return result, nil
}

// AnalyzeWith scores against an already loaded lexicon, without similarity.
func (a *Analyzer) AnalyzeWith(req AnalyzeRequest, lex *Lexicon) *AtsResult {
	return a.score(req, lex)
}

func (a *Analyzer) score(req AnalyzeRequest, lex *Lexicon) *AtsResult {
	prep := a.preprocess(req.ResumeText, lex)
	sections := prep.Sections
	cov := a.scorer.Skills(prep.Skills, ExtractJDTerms(req.JDText, a.tables))

	comps := ComponentScores{
		Readability:        ReadabilityScore(prep.Readability),
		SkillsTechnical:    cov.Technical,
		SkillsNonTechnical: cov.NonTechnical,
		Education:          a.scorer.SectionPresence(sections, SectionEducation),
		Experience:         a.scorer.Experience(sections),
		Projects:           a.scorer.Projects(sections, RawTokens(req.ResumeText)),
		Contact:            prep.Contact.Score(),
		Summary:            a.scorer.SectionPresence(sections, SectionSummary),
		Certifications:     a.scorer.SectionPresence(sections, SectionCertifications),
		Achievements:       a.scorer.SectionPresence(sections, SectionAchievements),
		Internship:         a.scorer.Internship(sections),
	}
	comps.Clamp()

	fresher := IsFresher(sections)
	if req.Fresher != nil {
		fresher = *req.Fresher
	}
	label := LabelNonFresher
	if fresher {
		label = LabelFresher
	}

	return &AtsResult{
		Label:         label,
		TotalScore:    a.weights.Composite(label, comps),
		Components:    comps,
		MatchedSkills: cov.Matched,
		MissingSkills: cov.Missing,
		Contact:       prep.Contact,
		SkillsTop:     prep.Skills.Top(skillsTopN),
	}
}

// Blank reports whether text has no visible characters.
func Blank(text string) bool {
	return strings.TrimSpace(text) == ""
}
