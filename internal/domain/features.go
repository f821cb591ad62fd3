package domain

import (
	"database/sql"
	"math"
)

// Feature identifies one audio feature. The numeric value is the feature's
// position in every Vector, FeatureRow and Weights array.
type Feature int

const (
	Energy Feature = iota
	Valence
	Danceability
	Tempo
	Acousticness
	Instrumentalness
	Loudness
	Speechiness

	NumFeatures = 8
)

var featureNames = [NumFeatures]string{
	"energy",
	"valence",
	"danceability",
	"tempo",
	"acousticness",
	"instrumentalness",
	"loudness",
	"speechiness",
}

func (f Feature) String() string {
	if f < 0 || int(f) >= NumFeatures {
		return "unknown"
	}
	return featureNames[f]
}

// Features returns all features in canonical order.
func Features() []Feature {
	out := make([]Feature, NumFeatures)
	for i := range out {
		out[i] = Feature(i)
	}
	return out
}

// FeatureByName looks up a feature by its column name.
func FeatureByName(name string) (Feature, bool) {
	for i, n := range featureNames {
		if n == name {
			return Feature(i), true
		}
	}
	return 0, false
}

// FeatureRow is one track's raw audio features. Any value may be absent.
type FeatureRow struct {
	TrackID int64
	Values  [NumFeatures]sql.NullFloat64
}

// Get returns the raw value of f and whether it is present.
func (r FeatureRow) Get(f Feature) (float64, bool) {
	v := r.Values[f]
	return v.Float64, v.Valid
}

// Vector is a normalized feature vector; every component lies in [0,1].
type Vector [NumFeatures]float64

// NeutralVector has every component at the midpoint.
func NeutralVector() Vector {
	var v Vector
	for i := range v {
		v[i] = 0.5
	}
	return v
}

// Weights holds one non-negative weight per feature.
type Weights [NumFeatures]float64

// DefaultWeights favors mood features over production features.
var DefaultWeights = Weights{
	Energy:           1.0,
	Valence:          1.0,
	Danceability:     1.0,
	Tempo:            0.5,
	Acousticness:     0.5,
	Instrumentalness: 0.3,
	Loudness:         0.3,
	Speechiness:      0.2,
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	var s float64
	for _, x := range w {
		s += x
	}
	return s
}

// MaxDistance is the largest weighted distance two normalized vectors can have.
func (w Weights) MaxDistance() float64 {
	return math.Sqrt(w.Sum())
}

// WeightsFromMap starts from DefaultWeights and applies overrides keyed by
// feature name. Unknown names are ignored.
func WeightsFromMap(overrides map[string]float64) Weights {
	w := DefaultWeights
	for name, v := range overrides {
		if f, ok := FeatureByName(name); ok {
			w[f] = v
		}
	}
	return w
}

// Bounds is the corpus-wide range of one feature. Valid is false when no row
// has a value for the feature.
type Bounds struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Valid bool    `json:"valid"`
}

// FeatureStats holds per-feature bounds in canonical order.
type FeatureStats [NumFeatures]Bounds

// Empty reports whether no feature has bounds, i.e. the catalog has no feature rows.
func (s FeatureStats) Empty() bool {
	for _, b := range s {
		if b.Valid {
			return false
		}
	}
	return true
}

// ByName returns the valid bounds keyed by feature name.
func (s FeatureStats) ByName() map[string]Bounds {
	out := make(map[string]Bounds, NumFeatures)
	for i, b := range s {
		if b.Valid {
			out[featureNames[i]] = b
		}
	}
	return out
}
