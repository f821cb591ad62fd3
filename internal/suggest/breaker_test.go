package suggest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/logger"
)

type stubSource struct {
	err   error
	out   []domain.Candidate
	calls int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Suggest(_ context.Context, _ Request) ([]domain.Candidate, error) {
	s.calls++
	return s.out, s.err
}

func TestBreakerSource_OpensAfterFailures(t *testing.T) {
	stub := &stubSource{err: errors.New("connection refused")}
	var states []string
	b := NewBreakerSource(stub, BreakerConfig{
		MaxFailures:   2,
		Timeout:       time.Hour,
		OnStateChange: func(_, state string) { states = append(states, state) },
	}, logger.Discard())

	for i := 0; i < 2; i++ {
		if _, err := b.Suggest(context.Background(), Request{}); err == nil {
			t.Fatal("Expected backend error")
		}
	}

	_, err := b.Suggest(context.Background(), Request{})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable, got %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("Expected open breaker to skip the backend, got %d calls", stub.calls)
	}
	if b.State() != "open" {
		t.Errorf("Expected open state, got %s", b.State())
	}
	if len(states) != 1 || states[0] != "open" {
		t.Errorf("Expected one transition to open, got %v", states)
	}
}

func TestBreakerSource_EmptyAnswersDoNotTrip(t *testing.T) {
	stub := &stubSource{err: ErrNoCandidates}
	b := NewBreakerSource(stub, BreakerConfig{MaxFailures: 1, Timeout: time.Hour}, logger.Discard())

	for i := 0; i < 3; i++ {
		if _, err := b.Suggest(context.Background(), Request{}); !errors.Is(err, ErrNoCandidates) {
			t.Fatalf("Expected ErrNoCandidates, got %v", err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("Expected closed state, got %s", b.State())
	}
	if b.Name() != "stub" {
		t.Errorf("Expected wrapped name, got %s", b.Name())
	}
}

func TestBreakerSource_PassesResults(t *testing.T) {
	stub := &stubSource{out: []domain.Candidate{{Title: "Loser", Artist: "Beck"}}}
	b := NewBreakerSource(stub, BreakerConfig{}, logger.Discard())

	got, err := b.Suggest(context.Background(), Request{})
	if err != nil || len(got) != 1 {
		t.Errorf("Expected passthrough, got %v %v", got, err)
	}
}
