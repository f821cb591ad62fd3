package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/expansion"
	"github.com/icewall905/tuneforge/internal/logger"
	"github.com/icewall905/tuneforge/internal/store"
)

type mockJobs struct {
	jobs     map[string]domain.JobSnapshot
	started  []expansion.StartRequest
	startErr error
	stopped  []string
}

func newMockJobs() *mockJobs {
	return &mockJobs{jobs: map[string]domain.JobSnapshot{}}
}

func (m *mockJobs) Start(_ context.Context, req expansion.StartRequest) (string, error) {
	if m.startErr != nil {
		return "", m.startErr
	}
	m.started = append(m.started, req)
	id := "job-new"
	m.jobs[id] = domain.JobSnapshot{ID: id, Status: domain.JobStatusQueued}
	return id, nil
}

func (m *mockJobs) Status(_ context.Context, id string) (domain.JobSnapshot, error) {
	s, ok := m.jobs[id]
	if !ok {
		return domain.JobSnapshot{}, expansion.ErrJobNotFound
	}
	return s, nil
}

func (m *mockJobs) Stop(ctx context.Context, id string) error {
	s, err := m.Status(ctx, id)
	if err != nil {
		return err
	}
	m.stopped = append(m.stopped, id)
	if !s.Status.IsTerminal() {
		s.Status = domain.JobStatusStopped
		m.jobs[id] = s
	}
	return nil
}

func (m *mockJobs) Result(ctx context.Context, id string) ([]domain.ScoredCandidate, error) {
	s, err := m.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Status.IsTerminal() {
		return nil, expansion.ErrJobPending
	}
	return s.Accepted, nil
}

func (m *mockJobs) List(_ context.Context, limit int) ([]domain.JobSnapshot, error) {
	out := make([]domain.JobSnapshot, 0, len(m.jobs))
	for _, s := range m.jobs {
		out = append(out, s)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockJobs) ClearFinished(_ context.Context) (int, error) {
	n := 0
	for id, s := range m.jobs {
		if s.Status.IsTerminal() {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

func (m *mockJobs) ActiveCount() int { return 0 }

type mockSimilarity struct {
	vectors map[int64]domain.Vector
}

func (m *mockSimilarity) FeatureStats(context.Context) domain.FeatureStats {
	var s domain.FeatureStats
	s[domain.Tempo] = domain.Bounds{Min: 60, Max: 200, Valid: true}
	return s
}
func (m *mockSimilarity) Weights() domain.Weights { return domain.DefaultWeights }
func (m *mockSimilarity) MaxDistance() float64    { return domain.DefaultWeights.MaxDistance() }
func (m *mockSimilarity) CacheSize() int          { return 3 }
func (m *mockSimilarity) VectorFor(_ context.Context, id int64) (domain.Vector, bool) {
	v, ok := m.vectors[id]
	return v, ok
}
func (m *mockSimilarity) Distance(a, b domain.Vector) float64 {
	return a[0] - b[0]
}

type mockCatalog struct {
	healthy bool
	missing []string
}

func (m *mockCatalog) Healthy(context.Context) bool { return m.healthy }
func (m *mockCatalog) ValidateSchema(context.Context) (bool, []string) {
	return len(m.missing) == 0, m.missing
}
func (m *mockCatalog) Coverage(context.Context) (int, int, error) { return 8, 10, nil }
func (m *mockCatalog) GetJobStats(context.Context) (*store.JobStats, error) {
	return &store.JobStats{Total: 2, Completed: 1, Stopped: 1}, nil
}

type testServer struct {
	jobs    *mockJobs
	catalog *mockCatalog
	router  chi.Router
}

func newTestServer() *testServer {
	jobs := newMockJobs()
	catalog := &mockCatalog{healthy: true}
	sim := &mockSimilarity{vectors: map[int64]domain.Vector{1: {0.9}, 2: {0.4}}}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})

	h := NewHandler(jobs, sim, catalog, metrics, logger.Discard())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return &testServer{jobs: jobs, catalog: catalog, router: r}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestStartJob(t *testing.T) {
	s := newTestServer()

	rec, body := s.do(t, http.MethodPost, "/api/sonic/start", `{"seed_track_id": 7, "target_count": 20, "threshold": 0, "hint": "late night"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["job_id"] != "job-new" || body["status"] != "queued" {
		t.Errorf("Unexpected body: %v", body)
	}

	req := s.jobs.started[0]
	if req.SeedTrackID != 7 || req.TargetCount != 20 || req.Params.Hint != "late night" {
		t.Errorf("Unexpected start request: %+v", req)
	}
	if req.Threshold == nil || *req.Threshold != 0 {
		t.Error("Expected explicit zero threshold to be passed through")
	}
}

func TestStartJob_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{seed`},
		{"missing fields", `{}`},
		{"negative threshold", `{"seed_track_id": 1, "target_count": 5, "threshold": -0.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			rec, body := s.do(t, http.MethodPost, "/api/sonic/start", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
			if body["error"] == nil {
				t.Error("Expected an error message")
			}
			if len(s.jobs.started) != 0 {
				t.Error("Expected no job to be started")
			}
		})
	}
}

func TestStartJob_RegistryRejects(t *testing.T) {
	s := newTestServer()
	s.jobs.startErr = expansion.ErrInvalidRequest

	rec, _ := s.do(t, http.MethodPost, "/api/sonic/start", `{"seed_track_id": 1, "target_count": 5}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}

	s.jobs.startErr = errors.New("disk full")
	rec, body := s.do(t, http.MethodPost, "/api/sonic/start", `{"seed_track_id": 1, "target_count": 5}`)
	if rec.Code != http.StatusInternalServerError || body["error"] != "internal error" {
		t.Errorf("Expected generic 500, got %d %v", rec.Code, body)
	}
}

func TestJobStatusStopResult(t *testing.T) {
	s := newTestServer()
	s.jobs.jobs["running"] = domain.JobSnapshot{
		ID:          "running",
		Status:      domain.JobStatusRunning,
		TargetCount: 4,
		CreatedAt:   time.Unix(100, 0),
		Accepted:    []domain.ScoredCandidate{{Track: domain.Track{ID: 3, Title: "Loser", Artist: "Beck"}, Distance: 0.12}},
	}

	rec, body := s.do(t, http.MethodGet, "/api/sonic/status/running", "")
	if rec.Code != http.StatusOK || body["status"] != "running" || body["accepted_count"].(float64) != 1 {
		t.Fatalf("Unexpected status response %d: %v", rec.Code, body)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/sonic/result/running", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for pending result, got %d", rec.Code)
	}

	rec, body = s.do(t, http.MethodPost, "/api/sonic/stop/running", "")
	if rec.Code != http.StatusOK || body["status"] != "stopped" {
		t.Fatalf("Unexpected stop response %d: %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodGet, "/api/sonic/result/running", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	tracks := body["tracks"].([]interface{})
	if len(tracks) != 1 || tracks[0].(map[string]interface{})["title"] != "Loser" {
		t.Errorf("Unexpected tracks: %v", tracks)
	}
}

func TestJobNotFound(t *testing.T) {
	s := newTestServer()
	for _, path := range []string{"/api/sonic/status/nope", "/api/sonic/result/nope"} {
		if rec, _ := s.do(t, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	if rec, _ := s.do(t, http.MethodPost, "/api/sonic/stop/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("stop: expected 404, got %d", rec.Code)
	}
}

func TestListAndClearJobs(t *testing.T) {
	s := newTestServer()
	s.jobs.jobs["a"] = domain.JobSnapshot{ID: "a", Status: domain.JobStatusCompleted}
	s.jobs.jobs["b"] = domain.JobSnapshot{ID: "b", Status: domain.JobStatusFailed}
	s.jobs.jobs["c"] = domain.JobSnapshot{ID: "c", Status: domain.JobStatusRunning}

	rec, body := s.do(t, http.MethodGet, "/api/sonic/jobs?page=1&page_size=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if jobs := body["jobs"].([]interface{}); len(jobs) != 2 {
		t.Errorf("Expected a page of 2 jobs, got %d", len(jobs))
	}
	p := body["pagination"].(map[string]interface{})
	if p["total_items"].(float64) != 3 || p["has_next"] != true {
		t.Errorf("Unexpected pagination: %v", p)
	}

	rec, body = s.do(t, http.MethodPost, "/api/sonic/clear", "")
	if rec.Code != http.StatusOK || body["cleared"].(float64) != 2 {
		t.Errorf("Unexpected clear response %d: %v", rec.Code, body)
	}
}

func TestStatsAndSchema(t *testing.T) {
	s := newTestServer()

	rec, body := s.do(t, http.MethodGet, "/api/sonic/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	features := body["features"].(map[string]interface{})
	if _, ok := features["tempo"]; !ok || len(features) != 1 {
		t.Errorf("Expected only tempo bounds, got %v", features)
	}
	if body["weights"].(map[string]interface{})["energy"].(float64) != 1 {
		t.Errorf("Unexpected weights: %v", body["weights"])
	}
	if body["history"].(map[string]interface{})["completed"].(float64) != 1 {
		t.Errorf("Unexpected history stats: %v", body["history"])
	}

	rec, body = s.do(t, http.MethodGet, "/api/sonic/schema", "")
	if rec.Code != http.StatusOK || body["valid"] != true || body["tracks_with_features"].(float64) != 8 {
		t.Errorf("Unexpected schema response %d: %v", rec.Code, body)
	}

	s.catalog.missing = []string{"tempo"}
	_, body = s.do(t, http.MethodGet, "/api/sonic/schema", "")
	if body["valid"] != false || len(body["missing"].([]interface{})) != 1 {
		t.Errorf("Expected missing tempo column, got %v", body)
	}
	if _, ok := body["total_tracks"]; ok {
		t.Error("Expected no coverage for an invalid schema")
	}
}

func TestDistance(t *testing.T) {
	s := newTestServer()

	rec, body := s.do(t, http.MethodGet, "/api/sonic/distance?a=1&b=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if d := body["distance"].(float64); d < 0.49 || d > 0.51 {
		t.Errorf("Unexpected distance %f", d)
	}

	if rec, _ := s.do(t, http.MethodGet, "/api/sonic/distance?a=1&b=99", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a track without features, got %d", rec.Code)
	}
	if rec, _ := s.do(t, http.MethodGet, "/api/sonic/distance?a=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad ids, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer()

	if rec, _ := s.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected healthy, got %d", rec.Code)
	}
	s.catalog.healthy = false
	if rec, _ := s.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}

	rec, _ := s.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# metrics") {
		t.Errorf("Expected metrics handler to be mounted, got %d", rec.Code)
	}
}
