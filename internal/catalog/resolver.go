// Package catalog maps suggested candidates onto tracks in the local library.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/logger"
	"github.com/icewall905/tuneforge/internal/store"
)

// TrackFinder is the catalog lookup surface used for matching.
type TrackFinder interface {
	FindExactTrack(ctx context.Context, title, artist string) (*domain.Track, error)
	FindFuzzyTrack(ctx context.Context, title, artist string) (*domain.Track, error)
}

// MatchKind tells how a candidate was matched.
type MatchKind string

const (
	MatchNone  MatchKind = "none"
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

type resolution struct {
	track *domain.Track
	kind  MatchKind
}

// Resolver matches candidates exactly first and falls back to fuzzy
// containment only when no exact match exists. Results, including misses,
// are memoized for a while to spare the catalog repeated lookups across
// rounds and jobs.
type Resolver struct {
	finder  TrackFinder
	memo    *cache.Cache
	logger  *logger.Logger
	missTTL time.Duration
}

type ResolverOptions struct {
	TTL     time.Duration
	MissTTL time.Duration
	// CleanupInterval of zero disables the background janitor.
	CleanupInterval time.Duration
	Logger          *logger.Logger
}

func NewResolver(finder TrackFinder, opts ResolverOptions) *Resolver {
	if opts.TTL <= 0 {
		opts.TTL = constants.ResolverCacheTTL
	}
	if opts.MissTTL <= 0 {
		opts.MissTTL = opts.TTL / 12
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Resolver{
		finder:  finder,
		memo:    cache.New(opts.TTL, opts.CleanupInterval),
		logger:  opts.Logger.WithComponent("resolver"),
		missTTL: opts.MissTTL,
	}
}

func memoKey(c domain.Candidate) string {
	return strings.ToLower(strings.TrimSpace(c.Title)) + "\x00" + strings.ToLower(strings.TrimSpace(c.Artist))
}

// Resolve returns the matching track, or nil with MatchNone when the library
// has no such track. Lookup failures are returned and not memoized.
func (r *Resolver) Resolve(ctx context.Context, c domain.Candidate) (*domain.Track, MatchKind, error) {
	key := memoKey(c)
	if v, ok := r.memo.Get(key); ok {
		res := v.(resolution)
		return res.track, res.kind, nil
	}

	track, err := r.finder.FindExactTrack(ctx, c.Title, c.Artist)
	if err == nil {
		r.memo.SetDefault(key, resolution{track: track, kind: MatchExact})
		return track, MatchExact, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, MatchNone, err
	}

	track, err = r.finder.FindFuzzyTrack(ctx, c.Title, c.Artist)
	if err == nil {
		r.logger.Debug("Fuzzy matched candidate", "candidate", c.Display(), "track_id", track.ID, "track", track.Display())
		r.memo.SetDefault(key, resolution{track: track, kind: MatchFuzzy})
		return track, MatchFuzzy, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, MatchNone, err
	}

	r.memo.Set(key, resolution{kind: MatchNone}, r.missTTL)
	return nil, MatchNone, nil
}

// Flush forgets every memoized match.
func (r *Resolver) Flush() {
	r.memo.Flush()
}
