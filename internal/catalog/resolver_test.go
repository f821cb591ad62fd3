package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/logger"
	"github.com/icewall905/tuneforge/internal/store"
)

type mockFinder struct {
	exact      map[string]*domain.Track
	fuzzy      map[string]*domain.Track
	err        error
	exactCalls int
	fuzzyCalls int
}

func (m *mockFinder) FindExactTrack(_ context.Context, title, artist string) (*domain.Track, error) {
	m.exactCalls++
	if m.err != nil {
		return nil, m.err
	}
	if t, ok := m.exact[title+"|"+artist]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockFinder) FindFuzzyTrack(_ context.Context, title, artist string) (*domain.Track, error) {
	m.fuzzyCalls++
	if t, ok := m.fuzzy[title+"|"+artist]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func newTestResolver(f TrackFinder) *Resolver {
	return NewResolver(f, ResolverOptions{Logger: logger.Discard()})
}

func TestResolver_ExactWins(t *testing.T) {
	exact := &domain.Track{ID: 1, Title: "Loser", Artist: "Beck"}
	f := &mockFinder{
		exact: map[string]*domain.Track{"Loser|Beck": exact},
		fuzzy: map[string]*domain.Track{"Loser|Beck": {ID: 2, Title: "Loser (Live)", Artist: "Beck"}},
	}
	r := newTestResolver(f)

	track, kind, err := r.Resolve(context.Background(), domain.Candidate{Title: "Loser", Artist: "Beck"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if kind != MatchExact || track.ID != 1 {
		t.Errorf("Expected exact match 1, got %s %d", kind, track.ID)
	}
	if f.fuzzyCalls != 0 {
		t.Error("Expected fuzzy lookup to be skipped when exact matches")
	}
}

func TestResolver_FuzzyFallback(t *testing.T) {
	f := &mockFinder{
		fuzzy: map[string]*domain.Track{"Kryptonite (Remastered)|3 Doors Down": {ID: 5, Title: "Kryptonite", Artist: "3 Doors Down"}},
	}
	r := newTestResolver(f)

	track, kind, err := r.Resolve(context.Background(), domain.Candidate{Title: "Kryptonite (Remastered)", Artist: "3 Doors Down"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if kind != MatchFuzzy || track.ID != 5 {
		t.Errorf("Expected fuzzy match 5, got %s %v", kind, track)
	}
}

func TestResolver_NoMatchIsMemoized(t *testing.T) {
	f := &mockFinder{}
	r := newTestResolver(f)
	c := domain.Candidate{Title: "Unknown", Artist: "Nobody"}

	for i := 0; i < 3; i++ {
		track, kind, err := r.Resolve(context.Background(), c)
		if err != nil || track != nil || kind != MatchNone {
			t.Fatalf("Expected no match, got %v %s %v", track, kind, err)
		}
	}
	if f.exactCalls != 1 || f.fuzzyCalls != 1 {
		t.Errorf("Expected one lookup of each kind, got exact=%d fuzzy=%d", f.exactCalls, f.fuzzyCalls)
	}

	r.Flush()
	_, _, _ = r.Resolve(context.Background(), c)
	if f.exactCalls != 2 {
		t.Errorf("Expected lookup after flush, got %d", f.exactCalls)
	}
}

func TestResolver_MemoIgnoresCase(t *testing.T) {
	f := &mockFinder{exact: map[string]*domain.Track{"Loser|Beck": {ID: 1}}}
	r := newTestResolver(f)

	_, _, _ = r.Resolve(context.Background(), domain.Candidate{Title: "Loser", Artist: "Beck"})
	track, kind, _ := r.Resolve(context.Background(), domain.Candidate{Title: " LOSER", Artist: "beck"})
	if kind != MatchExact || track.ID != 1 {
		t.Errorf("Expected memoized exact match, got %s %v", kind, track)
	}
	if f.exactCalls != 1 {
		t.Errorf("Expected a single catalog lookup, got %d", f.exactCalls)
	}
}

func TestResolver_ErrorsNotMemoized(t *testing.T) {
	f := &mockFinder{err: errors.New("database is locked")}
	r := newTestResolver(f)
	c := domain.Candidate{Title: "Loser", Artist: "Beck"}

	if _, _, err := r.Resolve(context.Background(), c); err == nil {
		t.Fatal("Expected lookup error")
	}
	f.err = nil
	f.exact = map[string]*domain.Track{"Loser|Beck": {ID: 1}}
	track, _, err := r.Resolve(context.Background(), c)
	if err != nil || track == nil {
		t.Errorf("Expected retry to succeed, got %v %v", track, err)
	}
}
