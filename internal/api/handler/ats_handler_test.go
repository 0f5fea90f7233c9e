package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"testing"

	"ats-scorer-go/internal/api/handler"
	"ats-scorer-go/internal/api/router"
	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/jobdesc"
	"ats-scorer-go/internal/processor"
	"ats-scorer-go/internal/storage"
	"ats-scorer-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockService records the last input and returns canned results.
type MockService struct {
	lastDoc   ats.RawDocument
	lastInput processor.AnalyzeInput

	result   *ats.AtsResult
	submit   *processor.SubmitResult
	analysis *models.Analysis
	score    float64
	err      error
}

func (m *MockService) Ingest(_ context.Context, doc ats.RawDocument) (*processor.IngestResult, error) {
	m.lastDoc = doc
	if m.err != nil {
		return nil, m.err
	}
	return &processor.IngestResult{
		ID:             "a1",
		Filename:       doc.Name,
		Format:         string(doc.Format),
		RawTextKey:     "resume/a1/raw.txt",
		CleanedTextKey: "resume/a1/cleaned.txt",
		Characters:     len(doc.Data),
		TextPreview:    "jane doe",
	}, nil
}

func (m *MockService) Preprocess(_ context.Context, doc ats.RawDocument) (*processor.PreprocessResult, error) {
	m.lastDoc = doc
	if m.err != nil {
		return nil, m.err
	}
	name := "Jane Doe"
	return &processor.PreprocessResult{
		ID:          "a1",
		ArtifactKey: "analysis/a1/preprocess.json",
		Preview:     processor.ResumePreview{Name: &name, SkillsTop: []string{"python", "sql"}},
	}, nil
}

func (m *MockService) Analyze(_ context.Context, in processor.AnalyzeInput) (*ats.AtsResult, error) {
	m.lastInput = in
	return m.result, m.err
}

func (m *MockService) Similarity(_ context.Context, in processor.AnalyzeInput) (float64, error) {
	m.lastInput = in
	return m.score, m.err
}

func (m *MockService) Submit(_ context.Context, in processor.AnalyzeInput) (*processor.SubmitResult, error) {
	m.lastInput = in
	return m.submit, m.err
}

func (m *MockService) GetAnalysis(_ context.Context, id string) (*models.Analysis, error) {
	if m.analysis == nil || m.analysis.AnalysisID != id {
		return nil, storage.ErrAnalysisNotFound
	}
	return m.analysis, nil
}

type mockJDs []string

func (m mockJDs) List() ([]string, error) { return m, nil }

type mockHealth struct{ err error }

func (m mockHealth) Check(context.Context) error { return m.err }

func newEngine(svc handler.Service, apiKeys []string, opts ...handler.HandlerOption) *server.Hertz {
	h := server.Default()
	router.RegisterRoutes(h, handler.NewATSHandler(svc, opts...), apiKeys)
	return h
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func postForm(t *testing.T, h *server.Hertz, path, filename, content string, fields map[string]string, headers ...ut.Header) (int, map[string]any) {
	t.Helper()
	body, contentType := multipartBody(t, filename, content, fields)
	headers = append(headers, ut.Header{Key: "Content-Type", Value: contentType})
	w := ut.PerformRequest(h.Engine, http.MethodPost, path, &ut.Body{Body: body, Len: body.Len()}, headers...)
	return decode(t, w)
}

func get(t *testing.T, h *server.Hertz, path string, headers ...ut.Header) (int, map[string]any) {
	t.Helper()
	w := ut.PerformRequest(h.Engine, http.MethodGet, path, nil, headers...)
	return decode(t, w)
}

func decode(t *testing.T, w *ut.ResponseRecorder) (int, map[string]any) {
	t.Helper()
	resp := w.Result()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body(), &out), string(resp.Body()))
	return resp.StatusCode(), out
}

func TestAnalyzeEndpoint(t *testing.T) {
	svc := &MockService{result: &ats.AtsResult{
		Label:         ats.LabelNonFresher,
		TotalScore:    72.5,
		MatchedSkills: []string{"python"},
		MissingSkills: []string{"kafka"},
	}}
	h := newEngine(svc, nil)

	status, body := postForm(t, h, "/api/v1/ats/analyze", "resume.txt", "Jane Doe\npython",
		map[string]string{"jd_file": "data.txt", "fresher": "true"})

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "non_fresher", body["label"])
	assert.Equal(t, 72.5, body["total_score"])
	assert.Equal(t, []any{"python"}, body["matched_skills"])

	assert.Equal(t, "data.txt", svc.lastInput.JDName)
	assert.Equal(t, ats.FormatTXT, svc.lastInput.Document.Format)
	assert.Equal(t, "Jane Doe\npython", string(svc.lastInput.Document.Data))
	require.NotNil(t, svc.lastInput.Fresher)
	assert.True(t, *svc.lastInput.Fresher)
}

func TestAnalyzeEndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		fields     map[string]string
		svcErr     error
		wantStatus int
		wantDetail string
	}{
		{"missing file", "", map[string]string{"jd_file": "data.txt"}, nil, http.StatusBadRequest, "file is required"},
		{"bad fresher", "resume.txt", map[string]string{"jd_text": "go", "fresher": "maybe"}, nil, http.StatusBadRequest, "fresher"},
		{"unsupported format", "resume.odt", map[string]string{"jd_text": "go"}, ats.NewFormatError("resume.odt", ""), http.StatusBadRequest, "unsupported"},
		{"jd not found", "resume.txt", map[string]string{"jd_file": "nope.txt"}, fmt.Errorf("%w: nope.txt", jobdesc.ErrNotFound), http.StatusNotFound, "nope.txt"},
		{"lexicon unavailable", "resume.txt", map[string]string{"jd_text": "go"}, ats.NewLexiconError("file://x.csv", errors.New("gone")), http.StatusServiceUnavailable, ""},
		{"internal", "resume.txt", map[string]string{"jd_text": "go"}, errors.New("secret dsn leaked"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newEngine(&MockService{err: tt.svcErr}, nil)

			status, body := postForm(t, h, "/api/v1/ats/analyze", tt.filename, "text", tt.fields)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, "error", body["status"])
			assert.Contains(t, body["detail"], tt.wantDetail)
		})
	}
}

func TestUploadLimit(t *testing.T) {
	h := newEngine(&MockService{}, nil, handler.WithMaxUploadBytes(8))

	status, _ := postForm(t, h, "/api/v1/ats/ingest", "resume.txt", "far more than eight bytes", nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestIngestEndpoint(t *testing.T) {
	svc := &MockService{}
	h := newEngine(svc, nil)

	status, body := postForm(t, h, "/api/v1/ats/ingest", "resume.txt", "Jane Doe", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "resume/a1/cleaned.txt", body["cleaned_text_file"])
	assert.Equal(t, "jane doe", body["text_preview"])
	assert.Equal(t, "resume.txt", svc.lastDoc.Name)
}

func TestPreprocessEndpoint(t *testing.T) {
	h := newEngine(&MockService{}, nil)

	status, body := postForm(t, h, "/api/v1/ats/preprocess", "resume.txt", "Jane Doe", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	preview, ok := body["preview"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", preview["name"])
	assert.Nil(t, preview["email"])
	assert.Equal(t, []any{"python", "sql"}, preview["skills_top"])
}

func TestSimilarityEndpoint(t *testing.T) {
	svc := &MockService{score: 87.65}
	h := newEngine(svc, nil)

	status, body := postForm(t, h, "/api/v1/ats/similarity", "resume.txt", "Jane Doe", map[string]string{"jd_text": "python developer"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "scored", body["status"])
	assert.Equal(t, 87.65, body["score"])
	assert.Equal(t, "python developer", svc.lastInput.JDText)
}

func TestSubmitAnalysisEndpoint(t *testing.T) {
	svc := &MockService{submit: &processor.SubmitResult{AnalysisID: "a1", Status: constants.StatusPending}}
	h := newEngine(svc, nil)

	status, body := postForm(t, h, "/api/v1/ats/analyses", "resume.txt", "Jane Doe", map[string]string{"jd_file": "data.txt"})
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "a1", body["analysis_id"])
	assert.Equal(t, constants.StatusPending, body["status"])

	svc.submit = &processor.SubmitResult{AnalysisID: "a1", Status: constants.StatusCompleted, Duplicate: true}
	status, body = postForm(t, h, "/api/v1/ats/analyses", "resume.txt", "Jane Doe", map[string]string{"jd_file": "data.txt"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])
}

func TestGetAnalysisEndpoint(t *testing.T) {
	score := 64.2
	svc := &MockService{analysis: &models.Analysis{
		AnalysisID: "a1",
		Status:     constants.StatusCompleted,
		Label:      "fresher",
		TotalScore: &score,
		ResultJSON: []byte(`{"label":"fresher"}`),
		JDText:     "hidden",
	}}
	h := newEngine(svc, nil)

	status, body := get(t, h, "/api/v1/ats/analyses/a1")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, constants.StatusCompleted, body["status"])
	assert.Equal(t, 64.2, body["total_score"])
	assert.Equal(t, map[string]any{"label": "fresher"}, body["result"])
	assert.NotContains(t, body, "jd_text")

	status, _ = get(t, h, "/api/v1/ats/analyses/missing")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListJDsEndpoint(t *testing.T) {
	status, _ := get(t, newEngine(&MockService{}, nil), "/api/v1/ats/jds")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, body := get(t, newEngine(&MockService{}, nil, handler.WithJDLister(mockJDs{"a.txt", "b.html"})), "/api/v1/ats/jds")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"a.txt", "b.html"}, body["jds"])
}

func TestHealthEndpoint(t *testing.T) {
	status, body := get(t, newEngine(&MockService{}, nil), "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = get(t, newEngine(&MockService{}, nil, handler.WithHealthChecker(mockHealth{err: errors.New("mysql down")})), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", body["status"])
}

func TestAPIKeyAuth(t *testing.T) {
	h := newEngine(&MockService{}, []string{"k1", "k2"}, handler.WithJDLister(mockJDs{"a.txt"}))

	tests := []struct {
		name   string
		header []ut.Header
		want   int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", []ut.Header{{Key: "Authorization", Value: "Bearer nope"}}, http.StatusUnauthorized},
		{"valid key", []ut.Header{{Key: "Authorization", Value: "Bearer k2"}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := get(t, h, "/api/v1/ats/jds", tt.header...)
			assert.Equal(t, tt.want, status)
		})
	}

	status, _ := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, status, "health stays open")
}
