package expansion

import (
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/icewall905/tuneforge/internal/domain"
)

// FinalOrder returns the accepted tracks sorted by ascending distance. Equal
// distances keep an order shuffled by randomSeed, so the same job always
// yields the same list.
func FinalOrder(accepted []domain.ScoredCandidate, randomSeed string) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, len(accepted))
	copy(out, accepted)

	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(randomSeed))
	// #nosec G404 -- reproducible ordering, not security sensitive
	rng := rand.New(rand.NewSource(int64(hasher.Sum64())))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	return out
}
