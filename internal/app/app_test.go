package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/processor"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	lexicon := filepath.Join(dir, "job_keywords.csv")
	require.NoError(t, os.WriteFile(lexicon, []byte("file_name,keywords\njd.txt,\"['python', 'sql']\"\n"), 0o644))

	jds := filepath.Join(dir, "JDs")
	require.NoError(t, os.MkdirAll(jds, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jds, "data.txt"), []byte("Python and SQL engineer"), 0o644))

	return &config.Config{
		Scoring: config.ScoringConfig{
			LexiconSource: "file://" + lexicon,
			JDFolder:      jds,
		},
		Extraction: config.ExtractionConfig{PDFFallback: true, PreviewLen: 300},
	}
}

func TestBuildOffline(t *testing.T) {
	a, err := Build(context.Background(), offlineConfig(t), nil, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Similarity)
	assert.True(t, a.Extractor.Supports(ats.FormatPDF))

	res, err := a.Service.Analyze(context.Background(), processor.AnalyzeInput{
		Document: ats.RawDocument{Name: "cv.txt", Data: []byte("Jane Doe\nSkills\nPython, SQL")},
		JDName:   "data.txt",
	})
	require.NoError(t, err)
	assert.Contains(t, res.MatchedSkills, "python")

	_, err = a.Service.Submit(context.Background(), processor.AnalyzeInput{
		Document: ats.RawDocument{Name: "cv.txt", Data: []byte("Jane")},
		JDText:   "go",
	})
	assert.ErrorIs(t, err, processor.ErrRepositoryNotInit)
}

func TestBuildRejectsBadConfig(t *testing.T) {
	t.Run("weights", func(t *testing.T) {
		cfg := offlineConfig(t)
		cfg.Scoring.Weights = map[string]map[string]float64{"fresher": {"readability": 2}}
		_, err := Build(context.Background(), cfg, nil, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("embedding provider", func(t *testing.T) {
		cfg := offlineConfig(t)
		cfg.Scoring.Similarity = true
		cfg.Embedding.Provider = "nope"
		_, err := Build(context.Background(), cfg, nil, zerolog.Nop())
		assert.ErrorContains(t, err, "unknown embedding provider")
	})

	t.Run("lexicon uri", func(t *testing.T) {
		cfg := offlineConfig(t)
		cfg.Scoring.LexiconSource = "minio://bucket/key.csv"
		_, err := Build(context.Background(), cfg, nil, zerolog.Nop())
		assert.ErrorContains(t, err, "minio is not configured")
	})
}
