// Package suggest asks a language model for tracks that might fit a seed
// and turns the free-form answer into candidates.
package suggest

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/icewall905/tuneforge/internal/domain"
)

// ErrNoCandidates is returned when a response holds no usable candidate.
var ErrNoCandidates = errors.New("no candidates in response")

// Request is one round's question to a suggestion source.
type Request struct {
	Prompt string
	Params domain.SuggestionParams
	// Seed makes sampling repeatable where the backend supports it.
	Seed int64
}

// Source produces candidate tracks for a prompt. Implementations must honor
// ctx cancellation so the caller's per-call timeout bounds them.
type Source interface {
	Name() string
	Suggest(ctx context.Context, req Request) ([]domain.Candidate, error)
}

// SeedFromString derives a sampling seed from a job's random seed.
func SeedFromString(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
