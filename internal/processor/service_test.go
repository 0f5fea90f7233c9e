package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/parser"
	"ats-scorer-go/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, lexicon ats.LexiconSource, opts ...Option) *AnalysisService {
	t.Helper()
	analyzer, err := ats.NewAnalyzer()
	require.NoError(t, err)

	s := NewAnalysisService(analyzer, parser.NewExtractor(), lexicon, opts...)
	var seq int64
	s.newID = func() (string, error) {
		return fmt.Sprintf("analysis-%d", atomic.AddInt64(&seq, 1)), nil
	}
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func txtDoc(text string) ats.RawDocument {
	return ats.RawDocument{Name: "resume.txt", Format: ats.FormatTXT, Data: []byte(text)}
}

type failingExtractor struct{ err error }

func (f failingExtractor) Extract(context.Context, ats.RawDocument) (string, error) {
	return "", f.err
}

func TestIngest(t *testing.T) {
	t.Run("without object storage", func(t *testing.T) {
		s := newTestService(t, testLexicon())

		res, err := s.Ingest(context.Background(), txtDoc(testResume))
		require.NoError(t, err)

		assert.Equal(t, "analysis-1", res.ID)
		assert.Equal(t, "txt", res.Format)
		assert.Empty(t, res.ResumeObjectKey)
		assert.Equal(t, len(parser.CleanText(testResume)), res.Characters)
		assert.Len(t, []rune(res.TextPreview), parser.DefaultPreviewLen)
		assert.True(t, strings.HasPrefix(res.TextPreview, "jane doe jane.doe@example.com"))
	})

	t.Run("stores file and both texts", func(t *testing.T) {
		objects := NewMockObjectStorage()
		s := newTestService(t, testLexicon(), WithObjectStorage(objects), WithPreviewLen(20))

		res, err := s.Ingest(context.Background(), txtDoc(testResume))
		require.NoError(t, err)

		assert.Equal(t, "resume/analysis-1/original.txt", res.ResumeObjectKey)
		assert.Equal(t, "hash-analysis-1", res.ContentHash)
		assert.Len(t, res.TextPreview, 20)

		raw, err := objects.GetText(context.Background(), res.RawTextKey)
		require.NoError(t, err)
		assert.Equal(t, strings.TrimSpace(testResume), raw)

		cleaned, err := objects.GetText(context.Background(), res.CleanedTextKey)
		require.NoError(t, err)
		assert.Equal(t, parser.CleanText(testResume), cleaned)
	})

	t.Run("upload failure", func(t *testing.T) {
		objects := NewMockObjectStorage()
		objects.uploadErr = errors.New("bucket gone")
		s := newTestService(t, testLexicon(), WithObjectStorage(objects))

		_, err := s.Ingest(context.Background(), txtDoc(testResume))
		assert.ErrorIs(t, err, ErrStoreFailed)
	})

	t.Run("unsupported format passes through", func(t *testing.T) {
		s := newTestService(t, testLexicon())

		_, err := s.Ingest(context.Background(), ats.RawDocument{Name: "resume.odt", Data: []byte("x")})
		assert.ErrorIs(t, err, ats.ErrUnsupportedFormat)
		assert.NotErrorIs(t, err, ErrExtractFailed)
	})

	t.Run("extraction failure", func(t *testing.T) {
		analyzer, err := ats.NewAnalyzer()
		require.NoError(t, err)
		s := NewAnalysisService(analyzer, failingExtractor{err: errors.New("corrupt file")}, testLexicon())

		_, err = s.Ingest(context.Background(), txtDoc("x"))
		assert.ErrorIs(t, err, ErrExtractFailed)
		assert.Contains(t, err.Error(), "corrupt file")
	})
}

func TestPreprocess(t *testing.T) {
	objects := NewMockObjectStorage()
	s := newTestService(t, testLexicon(), WithObjectStorage(objects))

	res, err := s.Preprocess(context.Background(), txtDoc(testResume))
	require.NoError(t, err)

	require.NotNil(t, res.Preview.Email)
	assert.Contains(t, res.Preview.SkillsTop, "python")
	assert.LessOrEqual(t, len(res.Preview.SkillsTop), 10)
	assert.Equal(t, "analysis/analysis-1/preprocess.json", res.ArtifactKey)

	data, err := objects.GetArtifact(context.Background(), res.ArtifactKey)
	require.NoError(t, err)
	var stored ats.Preprocessed
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, res.Result.Text, stored.Text)
}

func TestPreprocessLexiconUnavailable(t *testing.T) {
	s := newTestService(t, staticSource{key: "mem://broken", err: errors.New("no such bucket")})

	_, err := s.Preprocess(context.Background(), txtDoc(testResume))
	assert.ErrorIs(t, err, ats.ErrLexiconUnavailable)
}

func TestResolveJD(t *testing.T) {
	jds := MockJDResolver{"data.txt": testJD}

	tests := []struct {
		name       string
		resolver   JDResolver
		jdName     string
		jdText     string
		wantText   string
		wantSource string
		wantErr    error
	}{
		{"inline wins", jds, "data.txt", "inline jd", "inline jd", "inline", nil},
		{"by name", jds, "data.txt", "  ", testJD, "data.txt", nil},
		{"neither given", jds, "", "", "", "", ErrInvalidInput},
		{"unknown name", jds, "nope.txt", "", "", "", errJDMissing},
		{"no store", nil, "data.txt", "", "", "", ErrJDStoreNotInit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.resolver != nil {
				opts = append(opts, WithJDResolver(tt.resolver))
			}
			s := newTestService(t, testLexicon(), opts...)

			text, source, err := s.ResolveJD(context.Background(), tt.jdName, tt.jdText)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestService(t, testLexicon(), WithJDResolver(MockJDResolver{"data.txt": testJD}))

	byName, err := s.Analyze(context.Background(), AnalyzeInput{Document: txtDoc(testResume), JDName: "data.txt"})
	require.NoError(t, err)
	inline, err := s.Analyze(context.Background(), AnalyzeInput{Document: txtDoc(testResume), JDText: testJD})
	require.NoError(t, err)

	assert.Equal(t, byName.TotalScore, inline.TotalScore)
	assert.Contains(t, byName.MatchedSkills, "python")
	assert.Nil(t, byName.Similarity)

	yes := true
	forced, err := s.Analyze(context.Background(), AnalyzeInput{Document: txtDoc(testResume), JDText: testJD, Fresher: &yes})
	require.NoError(t, err)
	assert.Equal(t, ats.LabelFresher, forced.Label)

	_, err = s.Analyze(context.Background(), AnalyzeInput{Document: txtDoc(testResume)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestServiceSimilarity(t *testing.T) {
	s := newTestService(t, testLexicon())
	_, err := s.Similarity(context.Background(), AnalyzeInput{Document: txtDoc(testResume), JDText: testJD})
	assert.ErrorIs(t, err, ErrSimilarityNotInit)

	emb := &MockEmbedder{}
	s = newTestService(t, testLexicon(), WithSimilarity(NewSimilarityService(emb)))
	pct, err := s.Similarity(context.Background(), AnalyzeInput{Document: txtDoc(testResume), JDText: testJD})
	require.NoError(t, err)
	assert.Equal(t, 100.0, pct)
	assert.Equal(t, 2, emb.callCount())
}

func TestSubmissionHash(t *testing.T) {
	yes, no := true, false
	base := submissionHash([]byte("doc"), "jd", nil)

	assert.Len(t, base, 64)
	assert.Equal(t, base, submissionHash([]byte("doc"), "jd", nil))
	assert.NotEqual(t, base, submissionHash([]byte("doc"), "jd2", nil))
	assert.NotEqual(t, base, submissionHash([]byte("doc2"), "jd", nil))
	assert.NotEqual(t, base, submissionHash([]byte("doc"), "jd", &yes))
	assert.NotEqual(t, submissionHash([]byte("doc"), "jd", &yes), submissionHash([]byte("doc"), "jd", &no))
}

func newSubmitService(t *testing.T) (*AnalysisService, *MockObjectStorage, *MockRepository, *MockDedup) {
	objects := NewMockObjectStorage()
	repo := NewMockRepository()
	dedup := NewMockDedup()
	s := newTestService(t, testLexicon(),
		WithObjectStorage(objects),
		WithRepository(repo),
		WithDedup(dedup),
		WithJDResolver(MockJDResolver{"data.txt": testJD}),
		WithOutboxTarget("ats.events", "analysis.requested"),
	)
	return s, objects, repo, dedup
}

func TestSubmit(t *testing.T) {
	s, objects, repo, _ := newSubmitService(t)
	ctx := context.Background()

	res, err := s.Submit(ctx, AnalyzeInput{Document: txtDoc(testResume), JDName: "data.txt"})
	require.NoError(t, err)
	assert.Equal(t, "analysis-1", res.AnalysisID)
	assert.Equal(t, constants.StatusPending, res.Status)
	assert.False(t, res.Duplicate)

	a, err := repo.GetAnalysis(ctx, "analysis-1")
	require.NoError(t, err)
	assert.Equal(t, "data.txt", a.JDSource)
	assert.Equal(t, testJD, a.JDText)
	assert.Equal(t, constants.ScorerVersion, a.ScorerVersion)
	assert.Equal(t, "resume/analysis-1/original.txt", a.ResumeObjectKey)

	text, err := objects.GetText(ctx, a.TextObjectKey)
	require.NoError(t, err)
	assert.Equal(t, testResume, text)

	require.Len(t, repo.outbox, 1)
	event := repo.outbox[0]
	assert.Equal(t, constants.EventAnalysisRequested, event.EventType)
	assert.Equal(t, "ats.events", event.TargetExchange)
	assert.Equal(t, "analysis.requested", event.TargetRoutingKey)
	assert.Equal(t, constants.OutboxPending, event.Status)

	var msg storage.AnalysisRequestedMessage
	require.NoError(t, json.Unmarshal([]byte(event.Payload), &msg))
	assert.Equal(t, "analysis-1", msg.AnalysisID)
	assert.Equal(t, a.TextObjectKey, msg.TextObjectKey)
	assert.NotEmpty(t, msg.MessageID)
	assert.True(t, s.now().Equal(msg.RequestedAt))
}

func TestSubmitDuplicate(t *testing.T) {
	s, _, repo, _ := newSubmitService(t)
	ctx := context.Background()
	in := AnalyzeInput{Document: txtDoc(testResume), JDText: testJD}

	first, err := s.Submit(ctx, in)
	require.NoError(t, err)
	second, err := s.Submit(ctx, in)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.AnalysisID, second.AnalysisID)
	assert.Len(t, repo.outbox, 1)

	no := false
	third, err := s.Submit(ctx, AnalyzeInput{Document: txtDoc(testResume), JDText: testJD, Fresher: &no})
	require.NoError(t, err)
	assert.False(t, third.Duplicate)
	assert.Len(t, repo.outbox, 2)
}

func TestSubmitDuplicateOfMissingAnalysis(t *testing.T) {
	s, _, repo, dedup := newSubmitService(t)
	ctx := context.Background()
	in := AnalyzeInput{Document: txtDoc(testResume), JDText: testJD}
	hash := submissionHash(in.Document.Data, testJD, nil)
	dedup.seen[hash] = "gone"

	res, err := s.Submit(ctx, in)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, res.AnalysisID, dedup.seen[hash])
	assert.Len(t, repo.outbox, 1)
}

func TestSubmitRepositoryFailureForgetsHash(t *testing.T) {
	s, _, repo, dedup := newSubmitService(t)
	repo.createErr = errors.New("deadlock")
	in := AnalyzeInput{Document: txtDoc(testResume), JDText: testJD}

	_, err := s.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrDatabaseFailed)

	hash := submissionHash(in.Document.Data, testJD, nil)
	assert.Contains(t, dedup.forgotten, hash)
	assert.NotContains(t, dedup.seen, hash)
}

func TestSubmitDedupErrorContinues(t *testing.T) {
	s, _, repo, dedup := newSubmitService(t)
	dedup.err = errors.New("redis down")

	res, err := s.Submit(context.Background(), AnalyzeInput{Document: txtDoc(testResume), JDText: testJD})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Len(t, repo.outbox, 1)
}

func TestSubmitRequiresBackends(t *testing.T) {
	s := newTestService(t, testLexicon())
	_, err := s.Submit(context.Background(), AnalyzeInput{Document: txtDoc(testResume), JDText: testJD})
	assert.ErrorIs(t, err, ErrRepositoryNotInit)

	s = newTestService(t, testLexicon(), WithRepository(NewMockRepository()))
	_, err = s.Submit(context.Background(), AnalyzeInput{Document: txtDoc(testResume), JDText: testJD})
	assert.ErrorIs(t, err, ErrStorageNotInit)

	_, err = newTestService(t, testLexicon()).GetAnalysis(context.Background(), "x")
	assert.ErrorIs(t, err, ErrRepositoryNotInit)
}
