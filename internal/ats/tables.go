package ats

import (
	"fmt"
	"strings"
)

// WordSet is a read-only set of lowercase words.
type WordSet map[string]struct{}

// NewWordSet builds a WordSet from the given words, lowercasing each one.
func NewWordSet(words ...string) WordSet {
	s := make(WordSet, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = struct{}{}
	}
	return s
}

// Has reports whether w is in the set.
func (s WordSet) Has(w string) bool {
	_, ok := s[w]
	return ok
}

// Union returns a new set holding the members of s and o.
func (s WordSet) Union(o WordSet) WordSet {
	out := make(WordSet, len(s)+len(o))
	for w := range s {
		out[w] = struct{}{}
	}
	for w := range o {
		out[w] = struct{}{}
	}
	return out
}

// Tables holds the static vocabulary the extractor and scorers work with.
// A Tables value is built once and shared read-only between requests;
// callers that need a different industry vocabulary construct their own.
//
// Résumé skill extraction and JD scoring keep separate vocabularies: the
// Skill* sets decide which résumé tokens count as skills, while Technical
// and Soft split JD terms into requirement subsets.
type Tables struct {
	// SkillTechnical are technical skills recognised in résumé tokens.
	SkillTechnical WordSet
	// SkillSoft are soft skills recognised in résumé tokens.
	SkillSoft WordSet
	// Technical JD terms count towards technical coverage and project skills.
	Technical WordSet
	// Soft JD terms count towards non-technical coverage.
	Soft WordSet
	// LexiconNoise is job-posting boilerplate dropped from the corpus lexicon.
	LexiconNoise WordSet
	// Noise is boilerplate dropped from JD terms.
	Noise WordSet
	// Stopwords dropped by the tokenizer, lexicon loader and JD extractor.
	Stopwords WordSet
	// Aliases maps a surface form to its canonical skill name.
	Aliases map[string]string
	// SkillPhrases are multi-word skills detected in résumé token streams.
	SkillPhrases []string
	// TermPhrases are multi-word terms detected in JD text.
	TermPhrases []string
	// Headings maps each section to its heading aliases.
	Headings HeadingTable
}

// Validate checks that every table the pipeline reads is populated.
func (t *Tables) Validate() error {
	switch {
	case t == nil:
		return fmt.Errorf("tables: nil")
	case len(t.SkillTechnical) == 0:
		return fmt.Errorf("tables: résumé technical hints are empty")
	case len(t.SkillSoft) == 0:
		return fmt.Errorf("tables: résumé soft hints are empty")
	case len(t.Technical) == 0:
		return fmt.Errorf("tables: technical hints are empty")
	case len(t.Soft) == 0:
		return fmt.Errorf("tables: soft hints are empty")
	case len(t.Stopwords) == 0:
		return fmt.Errorf("tables: stopwords are empty")
	case len(t.Headings) == 0:
		return fmt.Errorf("tables: heading table is empty")
	}
	for key := range t.Headings {
		if !key.Valid() || key == SectionOther {
			return fmt.Errorf("tables: unknown heading section %q", key)
		}
	}
	return nil
}

// canonical returns the alias target for a lowercase token.
func (t *Tables) canonical(tok string) string {
	if c, ok := t.Aliases[tok]; ok {
		return c
	}
	return tok
}

// isTechnicalTerm reports whether a JD term counts towards technical coverage.
func (t *Tables) isTechnicalTerm(term string) bool {
	if t.Technical.Has(term) {
		return true
	}
	for _, p := range t.TermPhrases {
		if p == term {
			return true
		}
	}
	return false
}

var degreeFiller = []string{"b.tech", "btech", "m.tech", "msc", "bsc", "gpa", "cgpa"}

// DefaultTables returns the vocabulary tuned for software and data roles.
func DefaultTables() *Tables {
	return &Tables{
		SkillTechnical: NewWordSet(
			"python", "pandas", "numpy", "matplotlib", "seaborn", "sklearn", "scikit-learn",
			"tensorflow", "pytorch", "keras", "sql", "mysql", "postgresql", "git", "github",
			"docker", "kubernetes", "aws", "gcp", "azure", "linux", "spark", "nlp", "vision",
			"opencv", "xgboost", "lightgbm", "random", "forest", "regression", "classification",
			"clustering", "fastapi", "streamlit",
		),
		SkillSoft: NewWordSet(
			"communication", "leadership", "teamwork", "analytical", "problem", "critical",
			"management", "attention", "organization", "presentation", "collaboration",
			"stakeholder",
		),
		Technical: NewWordSet(
			"python", "pandas", "numpy", "matplotlib", "seaborn", "sklearn", "scikit-learn",
			"tensorflow", "pytorch", "keras", "sql", "mysql", "postgresql", "git", "github",
			"docker", "kubernetes", "aws", "gcp", "azure", "linux", "spark", "nlp", "vision",
			"opencv", "xgboost", "lightgbm", "regression", "classification", "clustering",
			"fastapi", "streamlit", "etl", "airflow", "hadoop", "tableau", "powerbi",
			"mlops", "helm", "terraform", "flask", "django", "kafka", "elasticsearch",
			"redis", "rest", "graphql", "bigquery", "sagemaker", "ray", "huggingface",
			"transformers", "llm", "generative", "langchain", "rag", "faiss", "vector",
		),
		Soft: NewWordSet(
			"communication", "leadership", "teamwork", "collaboration", "analytical",
			"problem", "critical", "management", "organization", "presentation",
			"stakeholder", "mentoring", "ownership", "initiative", "adaptability",
		),
		LexiconNoise: NewWordSet(
			"job", "description", "requirements", "related", "field", "fields", "strong",
			"excellent", "knowledge", "ability", "experience", "team", "teams", "manager",
			"engineer", "developer", "bachelor", "master", "ph.d", "ms", "bs", "ba", "bsc",
			"msc", "degree", "preferred", "record", "track", "successful", "thinker",
			"understanding", "communication", "detail", "attention", "extensive", "industry",
			"standards", "laws", "guidelines", "systems", "practices", "projects", "project",
			"stakeholders", "teamwork", "technology", "technologies",
		),
		Noise: NewWordSet(
			"job", "description", "requirements", "related", "field", "fields", "strong",
			"excellent", "knowledge", "ability", "experience", "team", "teams", "manager",
			"engineer", "developer", "bachelor", "master", "ph.d", "ms", "bs", "ba", "bsc",
			"msc", "degree", "preferred", "record", "track", "successful", "thinker",
			"understanding", "communication", "detail", "attention", "industry",
			"standards", "laws", "guidelines", "systems", "practices", "projects", "project",
			"stakeholders", "technology", "technologies", "responsibilities",
			"role", "position", "apply", "location", "about",
		),
		Stopwords: EnglishStopwords().Union(NewWordSet(degreeFiller...)),
		Aliases: map[string]string{
			"scikit-learn": "sklearn",
			"scikit":       "sklearn",
			"py-torch":     "pytorch",
			"tf":           "tensorflow",
			"ml":           "machine learning",
			"dl":           "deep learning",
			"postgres":     "postgresql",
			"np":           "numpy",
		},
		SkillPhrases: []string{"machine learning", "deep learning", "computer vision"},
		TermPhrases: []string{
			"machine learning", "deep learning", "computer vision", "natural language processing",
			"data analysis", "data engineering", "data visualization", "time series",
			"recommendation systems", "feature engineering", "model deployment",
		},
		Headings: DefaultHeadings(),
	}
}
