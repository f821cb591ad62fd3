package expansion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/icewall905/tuneforge/internal/catalog"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/logger"
	"github.com/icewall905/tuneforge/internal/similarity"
	"github.com/icewall905/tuneforge/internal/store"
	"github.com/icewall905/tuneforge/internal/suggest"
)

// library is an in-memory catalog with precomputed vectors.
type library struct {
	tracks  map[int64]domain.Track
	vectors map[int64]domain.Vector
	// flaky makes the next n lookups of a title fail.
	flaky   map[string]int
	mu      sync.Mutex
	batches int
}

func newLibrary() *library {
	return &library{tracks: map[int64]domain.Track{}, vectors: map[int64]domain.Vector{}, flaky: map[string]int{}}
}

func (l *library) add(id int64, title, artist string, v *domain.Vector) {
	l.tracks[id] = domain.Track{ID: id, Title: title, Artist: artist}
	if v != nil {
		l.vectors[id] = *v
	}
}

func (l *library) GetTrack(_ context.Context, id int64) (*domain.Track, error) {
	t, ok := l.tracks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (l *library) VectorFor(_ context.Context, id int64) (domain.Vector, bool) {
	v, ok := l.vectors[id]
	return v, ok
}

func (l *library) VectorsFor(_ context.Context, ids []int64) map[int64]domain.Vector {
	l.mu.Lock()
	l.batches++
	l.mu.Unlock()
	out := make(map[int64]domain.Vector)
	for _, id := range ids {
		if v, ok := l.vectors[id]; ok {
			out[id] = v
		}
	}
	return out
}

func (l *library) DistanceMany(seed domain.Vector, cands []domain.Vector) []float64 {
	return similarity.DistanceMany(seed, cands, domain.DefaultWeights)
}

func (l *library) Resolve(_ context.Context, c domain.Candidate) (*domain.Track, catalog.MatchKind, error) {
	l.mu.Lock()
	if l.flaky[c.Title] > 0 {
		l.flaky[c.Title]--
		l.mu.Unlock()
		return nil, catalog.MatchNone, errors.New("database is locked")
	}
	l.mu.Unlock()

	for _, t := range l.tracks {
		if strings.EqualFold(t.Title, c.Title) && strings.EqualFold(t.Artist, c.Artist) {
			found := t
			return &found, catalog.MatchExact, nil
		}
	}
	return nil, catalog.MatchNone, nil
}

// scriptedSource answers round n with rounds[n], repeating the last entry.
type scriptedSource struct {
	rounds  [][]domain.Candidate
	err     error
	block   chan struct{}
	entered chan struct{}
	panicAt int
	prompts []string
	mu      sync.Mutex
	calls   int
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Suggest(ctx context.Context, req suggest.Request) ([]domain.Candidate, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.prompts = append(s.prompts, req.Prompt)
	block := s.block
	entered := s.entered
	s.mu.Unlock()

	if s.panicAt > 0 && n == s.panicAt {
		panic("source exploded")
	}
	if entered != nil && n > 1 {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block != nil && n > 1 {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.rounds) == 0 {
		return nil, suggest.ErrNoCandidates
	}
	i := min(n-1, len(s.rounds)-1)
	return s.rounds[i], nil
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memHistory is an in-memory History.
type memHistory struct {
	jobs map[string]domain.JobSnapshot
	mu   sync.Mutex
}

func newMemHistory() *memHistory {
	return &memHistory{jobs: map[string]domain.JobSnapshot{}}
}

func (h *memHistory) SaveJob(_ context.Context, s domain.JobSnapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs[s.ID] = s
	return nil
}

func (h *memHistory) GetJob(_ context.Context, id string) (domain.JobSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.jobs[id]
	if !ok {
		return domain.JobSnapshot{}, store.ErrNotFound
	}
	return s, nil
}

func (h *memHistory) ListJobs(_ context.Context, _ int) ([]domain.JobSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.JobSnapshot, 0, len(h.jobs))
	for _, s := range h.jobs {
		out = append(out, s)
	}
	return out, nil
}

func (h *memHistory) DeleteFinishedJobs(_ context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n int64
	for id, s := range h.jobs {
		if s.Status.IsTerminal() {
			delete(h.jobs, id)
			n++
		}
	}
	return n, nil
}

func (h *memHistory) PruneJobs(_ context.Context, _ int) error { return nil }

func (h *memHistory) FailInterruptedJobs(_ context.Context, reason string, at time.Time) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n int64
	for id, s := range h.jobs {
		if !s.Status.IsTerminal() {
			s.Status = domain.JobStatusFailed
			s.Error = reason
			s.UpdatedAt = at
			h.jobs[id] = s
			n++
		}
	}
	return n, nil
}

func vec(v float64) *domain.Vector {
	var out domain.Vector
	for i := range out {
		out[i] = v
	}
	return &out
}

func cand(title, artist string) domain.Candidate {
	return domain.Candidate{Title: title, Artist: artist}
}

type fixture struct {
	lib      *library
	source   *scriptedSource
	history  *memHistory
	registry *Registry
}

func newFixture(source *scriptedSource, cfg RegistryConfig) *fixture {
	lib := newLibrary()
	lib.add(1, "Seed", "Band", vec(0.5))
	lib.add(2, "Near One", "Band", vec(0.55))
	lib.add(3, "Near Two", "Other", vec(0.45))
	lib.add(4, "Far", "Other", vec(1.0))
	lib.add(5, "Near Three", "Third", vec(0.52))
	lib.add(6, "Silent", "Nobody", nil)
	lib.add(7, "Twin", "Band", vec(0.5))

	history := newMemHistory()
	runner := NewRunner(lib, lib, lib, source, RunnerConfig{
		ContextWindow:     5,
		SuggestionTimeout: 200 * time.Millisecond,
	}, logger.Discard(), nil)
	registry := NewRegistry(runner, history, cfg, logger.Discard())

	return &fixture{lib: lib, source: source, history: history, registry: registry}
}
