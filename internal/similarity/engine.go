// Package similarity scores how close tracks sound by normalizing their audio
// features against corpus-wide bounds and measuring weighted distance.
package similarity

import (
	"context"
	"time"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/logger"
)

// FeatureSource is the slice of the catalog the engine reads from.
type FeatureSource interface {
	FetchOne(ctx context.Context, trackID int64) (domain.FeatureRow, bool)
	FetchMany(ctx context.Context, trackIDs []int64) map[int64]domain.FeatureRow
	FeatureBounds(ctx context.Context) (domain.FeatureStats, error)
}

// IndexMaintainer creates lookup indexes in the catalog.
type IndexMaintainer interface {
	EnsureIndexes(ctx context.Context) ([]string, error)
}

// Observer is notified about cache activity. Metrics implement it.
type Observer interface {
	StatsRecomputed()
	VectorCacheHit()
	VectorCacheMiss()
}

type Options struct {
	Weights         domain.Weights
	StatsTTL        time.Duration
	VectorCacheSize int
	EvictionBatch   int
	Logger          *logger.Logger
	Observer        Observer
	Now             func() time.Time
}

// Engine computes normalized vectors and distances. It is safe for
// concurrent use by many jobs.
type Engine struct {
	source   FeatureSource
	logger   *logger.Logger
	observer Observer
	now      func() time.Time
	stats    *statsCache
	vectors  *vectorCache
	weights  domain.Weights
}

func NewEngine(source FeatureSource, opts Options) *Engine {
	if opts.Weights == (domain.Weights{}) {
		opts.Weights = domain.DefaultWeights
	}
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = constants.DefaultStatsTTL
	}
	if opts.VectorCacheSize <= 0 {
		opts.VectorCacheSize = constants.DefaultVectorCacheSize
	}
	if opts.EvictionBatch <= 0 {
		opts.EvictionBatch = constants.VectorCacheEvictionBatch
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		source:   source,
		logger:   opts.Logger.WithComponent("similarity"),
		observer: opts.Observer,
		now:      opts.Now,
		stats:    &statsCache{ttl: opts.StatsTTL},
		vectors:  newVectorCache(opts.VectorCacheSize, opts.EvictionBatch),
		weights:  opts.Weights,
	}
}

// Weights returns the weights used by Distance.
func (e *Engine) Weights() domain.Weights {
	return e.weights
}

// MaxDistance is the upper bound of Distance under the engine's weights.
func (e *Engine) MaxDistance() float64 {
	return e.weights.MaxDistance()
}

// FeatureStats returns corpus bounds, recomputing them when the cached copy
// is older than the TTL. A failed recompute yields empty stats and is not cached.
func (e *Engine) FeatureStats(ctx context.Context) domain.FeatureStats {
	now := e.now()
	if stats, ok := e.stats.get(now); ok {
		return stats
	}

	stats, err := e.source.FeatureBounds(ctx)
	if err != nil {
		e.logger.Warn("Failed to compute feature stats", "error", err)
		return domain.FeatureStats{}
	}

	e.stats.set(stats, now)
	if e.observer != nil {
		e.observer.StatsRecomputed()
	}
	e.logger.Debug("Recomputed feature stats", "empty", stats.Empty())
	return stats
}

// Normalize is the cached form of the package-level Normalize.
func (e *Engine) Normalize(row domain.FeatureRow, stats domain.FeatureStats) domain.Vector {
	key := newVectorKey(row, stats)
	if v, ok := e.vectors.get(key); ok {
		if e.observer != nil {
			e.observer.VectorCacheHit()
		}
		return v
	}
	if e.observer != nil {
		e.observer.VectorCacheMiss()
	}

	v := Normalize(row, stats)
	e.vectors.put(key, v)
	return v
}

// VectorFor loads and normalizes one track's features.
func (e *Engine) VectorFor(ctx context.Context, trackID int64) (domain.Vector, bool) {
	row, ok := e.source.FetchOne(ctx, trackID)
	if !ok {
		return domain.Vector{}, false
	}
	return e.Normalize(row, e.FeatureStats(ctx)), true
}

// VectorsFor loads and normalizes features for many tracks with one batch
// fetch. Tracks without features are left out.
func (e *Engine) VectorsFor(ctx context.Context, trackIDs []int64) map[int64]domain.Vector {
	out := make(map[int64]domain.Vector, len(trackIDs))
	if len(trackIDs) == 0 {
		return out
	}

	rows := e.source.FetchMany(ctx, trackIDs)
	if len(rows) == 0 {
		return out
	}

	stats := e.FeatureStats(ctx)
	for id, row := range rows {
		out[id] = e.Normalize(row, stats)
	}
	return out
}

// Distance uses the engine's weights.
func (e *Engine) Distance(a, b domain.Vector) float64 {
	return Distance(a, b, e.weights)
}

// DistanceMany uses the engine's weights.
func (e *Engine) DistanceMany(seed domain.Vector, candidates []domain.Vector) []float64 {
	return DistanceMany(seed, candidates, e.weights)
}

// ClearCaches drops the stats and vector caches so the next call recomputes.
func (e *Engine) ClearCaches() {
	e.stats.clear()
	e.vectors.clear()
	e.logger.Info("Cleared similarity caches")
}

// CacheSize returns the number of memoized vectors.
func (e *Engine) CacheSize() int {
	return e.vectors.len()
}

// EnsureIndexes asks the catalog to create its lookup indexes when the
// source supports it.
func (e *Engine) EnsureIndexes(ctx context.Context) ([]string, error) {
	m, ok := e.source.(IndexMaintainer)
	if !ok {
		return nil, nil
	}
	return m.EnsureIndexes(ctx)
}
