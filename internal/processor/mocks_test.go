package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/storage"
	"ats-scorer-go/internal/storage/models"

	"github.com/cloudwego/eino/components/embedding"
)

const testResume = `Jane Doe
jane.doe@example.com | +91 9876543210

Skills
Python, SQL, Docker, communication

Experience
Data Engineer, Acme, Jan 2021 - Present
- Built batch pipelines in Python and Spark processing 2M rows daily
- Reduced query latency by 40% with SQL tuning
- Mentored two interns

Education
B.Tech Computer Science, 2020`

const testJD = "Data engineer with python, sql, docker and spark. Strong communication."

type staticSource struct {
	key  string
	data string
	err  error
}

func (s staticSource) Key() string { return s.key }

func (s staticSource) Open(context.Context) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.data)), nil
}

func testLexicon() staticSource {
	return staticSource{
		key:  "mem://corpus",
		data: "file_name,keywords\njd.txt,\"['python', 'sql', 'docker', 'spark']\"\n",
	}
}

// MockObjectStorage keeps objects in memory.
type MockObjectStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func NewMockObjectStorage() *MockObjectStorage {
	return &MockObjectStorage{objects: make(map[string][]byte)}
}

var _ storage.ObjectStorage = (*MockObjectStorage)(nil)

func (m *MockObjectStorage) put(key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.objects[key] = data
	return key, nil
}

func (m *MockObjectStorage) get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (m *MockObjectStorage) UploadResumeFile(_ context.Context, id, ext string, r io.Reader, _ int64) (string, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", err
	}
	key, err := m.put(fmt.Sprintf("resume/%s/original%s", id, ext), data)
	return key, "hash-" + id, err
}

func (m *MockObjectStorage) UploadText(_ context.Context, id, name, text string) (string, error) {
	return m.put(fmt.Sprintf("resume/%s/%s.txt", id, name), []byte(text))
}

func (m *MockObjectStorage) UploadArtifact(_ context.Context, id, name string, data []byte) (string, error) {
	return m.put(fmt.Sprintf("analysis/%s/%s.json", id, name), data)
}

func (m *MockObjectStorage) GetResumeFile(_ context.Context, key string) ([]byte, error) {
	return m.get(key)
}

func (m *MockObjectStorage) GetText(_ context.Context, key string) (string, error) {
	data, err := m.get(key)
	return string(data), err
}

func (m *MockObjectStorage) GetArtifact(_ context.Context, key string) ([]byte, error) {
	return m.get(key)
}

func (m *MockObjectStorage) GetPresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://minio.local/" + key, nil
}

// MockRepository is an in-memory analysis repository.
type MockRepository struct {
	mu        sync.Mutex
	analyses  map[string]*models.Analysis
	outbox    []*models.OutboxMessage
	createErr error
	claimErr  error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{analyses: make(map[string]*models.Analysis)}
}

var (
	_ storage.AnalysisRepository = (*MockRepository)(nil)
	_ storage.AnalysisMaintainer = (*MockRepository)(nil)
)

func (m *MockRepository) CreateAnalysisWithOutbox(_ context.Context, a *models.Analysis, msg *models.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.analyses[a.AnalysisID] = a
	m.outbox = append(m.outbox, msg)
	return nil
}

func (m *MockRepository) GetAnalysis(_ context.Context, id string) (*models.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return nil, storage.ErrAnalysisNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockRepository) MarkAnalysisProcessing(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return false, m.claimErr
	}
	a, ok := m.analyses[id]
	if !ok || (a.Status != constants.StatusPending && a.Status != constants.StatusFailed) {
		return false, nil
	}
	a.Status = constants.StatusProcessing
	a.Attempts++
	return true, nil
}

func (m *MockRepository) CompleteAnalysis(_ context.Context, id string, out storage.AnalysisOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return storage.ErrAnalysisNotFound
	}
	a.Status = constants.StatusCompleted
	a.Label = out.Label
	score := out.TotalScore
	a.TotalScore = &score
	a.Similarity = out.Similarity
	a.ResultJSON = out.ResultJSON
	return nil
}

func (m *MockRepository) FailAnalysis(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return storage.ErrAnalysisNotFound
	}
	a.Status = constants.StatusFailed
	a.ErrorMessage = reason
	return nil
}

func (m *MockRepository) StaleAnalyses(_ context.Context, stuckBefore time.Time, includeFailed bool, limit int) ([]models.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Analysis
	for _, a := range m.analyses {
		stuck := a.Status == constants.StatusProcessing && a.UpdatedAt.Before(stuckBefore)
		if stuck || (includeFailed && a.Status == constants.StatusFailed) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) RequeueAnalysis(_ context.Context, id string, msg *models.OutboxMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok || (a.Status != constants.StatusProcessing && a.Status != constants.StatusFailed) {
		return false, nil
	}
	a.Status = constants.StatusPending
	a.Attempts = 0
	a.ErrorMessage = ""
	m.outbox = append(m.outbox, msg)
	return true, nil
}

// MockDedup records content hashes.
type MockDedup struct {
	mu        sync.Mutex
	seen      map[string]string
	forgotten []string
	err       error
}

func NewMockDedup() *MockDedup {
	return &MockDedup{seen: make(map[string]string)}
}

func (m *MockDedup) CheckAndSetSubmission(_ context.Context, hash, id string, _ time.Duration) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, "", m.err
	}
	if existing, ok := m.seen[hash]; ok {
		return true, existing, nil
	}
	m.seen[hash] = id
	return false, "", nil
}

func (m *MockDedup) ForgetSubmission(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, hash)
	m.forgotten = append(m.forgotten, hash)
	return nil
}

// MockLocker grants or refuses every lock.
type MockLocker struct {
	refuse   bool
	err      error
	released []string
}

func (m *MockLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.refuse {
		return "", nil
	}
	return "token-" + key, nil
}

func (m *MockLocker) ReleaseLock(_ context.Context, key, _ string) (bool, error) {
	m.released = append(m.released, key)
	return true, nil
}

// MockJDResolver serves JDs from a map.
type MockJDResolver map[string]string

var errJDMissing = errors.New("job description not found")

func (m MockJDResolver) Load(_ context.Context, name string) (string, error) {
	jd, ok := m[name]
	if !ok {
		return "", errJDMissing
	}
	return jd, nil
}

// MockEmbedder returns a fixed vector per text and counts calls.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
	calls   []string
	err     error
	model   string
}

func (m *MockEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		m.calls = append(m.calls, t)
		v, ok := m.vectors[t]
		if !ok {
			v = []float64{1, 1}
		}
		out[i] = v
	}
	return out, nil
}

func (m *MockEmbedder) Model() string {
	if m.model == "" {
		return "test-model"
	}
	return m.model
}

func (m *MockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockVectorCache is an in-memory JD vector cache.
type MockVectorCache struct {
	mu      sync.Mutex
	entries map[string]cachedVector
	getErr  error
}

type cachedVector struct {
	vector []float32
	model  string
}

func NewMockVectorCache() *MockVectorCache {
	return &MockVectorCache{entries: make(map[string]cachedVector)}
}

func (m *MockVectorCache) GetJDVector(_ context.Context, key string) ([]float32, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, "", m.getErr
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return e.vector, e.model, nil
}

func (m *MockVectorCache) SetJDVector(_ context.Context, key string, v []float32, model string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = cachedVector{vector: v, model: model}
	return nil
}
