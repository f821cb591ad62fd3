package similarity

import (
	"math"

	"github.com/icewall905/tuneforge/internal/domain"
)

// Normalize scales a raw row into [0,1] per feature. A missing or NaN value,
// or a missing bound, gives 0, a feature with no spread gives 0.5, everything else is clamped to
// the bounds and rescaled.
func Normalize(row domain.FeatureRow, stats domain.FeatureStats) domain.Vector {
	var out domain.Vector
	for _, f := range domain.Features() {
		raw, ok := row.Get(f)
		b := stats[f]
		switch {
		case !ok || math.IsNaN(raw) || !b.Valid:
			out[f] = 0.0
		case b.Max == b.Min:
			out[f] = 0.5
		default:
			v := math.Min(math.Max(raw, b.Min), b.Max)
			out[f] = (v - b.Min) / (b.Max - b.Min)
		}
	}
	return out
}

// Distance is the weighted Euclidean distance between two normalized vectors.
// With components in [0,1] it ranges up to w.MaxDistance(), not 1.
func Distance(a, b domain.Vector, w domain.Weights) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += w[i] * d * d
	}
	return math.Sqrt(sum)
}

// DistanceMany returns Distance(seed, c) for every candidate, in input order.
func DistanceMany(seed domain.Vector, candidates []domain.Vector, w domain.Weights) []float64 {
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		out[i] = Distance(seed, c, w)
	}
	return out
}
