// Package expansion grows a playlist around a seed track by repeatedly asking
// a suggestion source for candidates and keeping those that sound close
// enough to the seed.
package expansion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/icewall905/tuneforge/internal/catalog"
	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/logger"
	"github.com/icewall905/tuneforge/internal/store"
	"github.com/icewall905/tuneforge/internal/suggest"
)

type TrackGetter interface {
	GetTrack(ctx context.Context, id int64) (*domain.Track, error)
}

// VectorSource is the part of the similarity engine a run needs.
type VectorSource interface {
	VectorFor(ctx context.Context, trackID int64) (domain.Vector, bool)
	VectorsFor(ctx context.Context, trackIDs []int64) map[int64]domain.Vector
	DistanceMany(seed domain.Vector, candidates []domain.Vector) []float64
}

type CandidateResolver interface {
	Resolve(ctx context.Context, c domain.Candidate) (*domain.Track, catalog.MatchKind, error)
}

// RoundResult summarizes one attempt.
type RoundResult struct {
	Candidates int
	Accepted   int
	Duplicates int
	Unmatched  int
	Rejected   int
	Duration   time.Duration
}

// Observer receives lifecycle events. Metrics implement it.
type Observer interface {
	JobStarted()
	JobFinished(status domain.JobStatus, duration time.Duration)
	RoundCompleted(r RoundResult)
	SuggestionFailed(source string)
}

type nopObserver struct{}

func (nopObserver) JobStarted()                                 {}
func (nopObserver) JobFinished(domain.JobStatus, time.Duration) {}
func (nopObserver) RoundCompleted(RoundResult)                  {}
func (nopObserver) SuggestionFailed(string)                     {}

type RunnerConfig struct {
	ContextWindow      int
	CandidatesPerRound int
	SuggestionTimeout  time.Duration
}

// Runner executes the round loop of a single job.
type Runner struct {
	tracks   TrackGetter
	vectors  VectorSource
	resolver CandidateResolver
	source   suggest.Source
	logger   *logger.Logger
	observer Observer
	cfg      RunnerConfig
}

func NewRunner(tracks TrackGetter, vectors VectorSource, resolver CandidateResolver, source suggest.Source, cfg RunnerConfig, log *logger.Logger, observer Observer) *Runner {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = constants.DefaultContextWindow
	}
	if cfg.CandidatesPerRound <= 0 {
		cfg.CandidatesPerRound = constants.DefaultCandidatesPerRound
	}
	if cfg.SuggestionTimeout <= 0 {
		cfg.SuggestionTimeout = constants.DefaultSuggestionTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Runner{
		tracks:   tracks,
		vectors:  vectors,
		resolver: resolver,
		source:   source,
		logger:   log.WithComponent("expansion"),
		observer: observer,
		cfg:      cfg,
	}
}

// Run drives j from queued to a terminal state. Only a missing seed fails
// the job; every per-round problem is logged and the loop moves on.
func (r *Runner) Run(ctx context.Context, j *job) {
	if !j.begin() {
		return
	}

	snap := j.snapshot()
	log := r.logger.WithJob(snap.ID, snap.SeedTrackID)
	started := time.Now()
	r.observer.JobStarted()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Panic in expansion job", "panic", rec)
			j.fail(fmt.Sprintf("internal error: %v", rec))
		}
		r.observer.JobFinished(j.status(), time.Since(started))
	}()

	seed, seedVec, err := r.resolveSeed(ctx, snap.SeedTrackID)
	if err != nil {
		log.Warn("Expansion job failed", "error", err)
		j.fail(err.Error())
		return
	}
	j.markSeen(domain.Candidate{Title: seed.Title, Artist: seed.Artist, Album: seed.Album})
	log.Info("Expansion job started", "seed", seed.Display(), "target", snap.TargetCount, "threshold", snap.Threshold)

	for {
		if j.stopping() || ctx.Err() != nil {
			j.finish(domain.JobStatusStopped)
			s := j.snapshot()
			log.Info("Expansion job stopped", "accepted", s.AcceptedCount(), "attempts", s.Attempts)
			return
		}

		s := j.snapshot()
		if s.AcceptedCount() >= s.TargetCount || s.Attempts >= s.MaxAttempts {
			break
		}
		r.round(ctx, j, seed, seedVec, log)
	}

	j.finish(domain.JobStatusCompleted)
	s := j.snapshot()
	log.Info("Expansion job completed", "accepted", s.AcceptedCount(), "target", s.TargetCount,
		"attempts", s.Attempts, "candidates", s.TotalCandidates)
}

func (r *Runner) resolveSeed(ctx context.Context, id int64) (*domain.Track, domain.Vector, error) {
	track, err := r.tracks.GetTrack(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Vector{}, fmt.Errorf("seed track %d not found", id)
	}
	if err != nil {
		return nil, domain.Vector{}, fmt.Errorf("failed to load seed track %d: %w", id, err)
	}

	vec, ok := r.vectors.VectorFor(ctx, id)
	if !ok {
		return nil, domain.Vector{}, fmt.Errorf("seed track %d has no audio features", id)
	}
	return track, vec, nil
}

type match struct {
	candidate domain.Candidate
	track     domain.Track
}

func (r *Runner) round(ctx context.Context, j *job, seed *domain.Track, seedVec domain.Vector, log *logger.Logger) {
	roundStart := time.Now()

	var s domain.JobSnapshot
	j.update(func(st *domain.JobSnapshot) {
		st.Attempts++
		st.CurrentStep = fmt.Sprintf("requesting candidates (attempt %d of %d)", st.Attempts, st.MaxAttempts)
		s = *st
	})
	res := RoundResult{}

	needed := max(s.TargetCount-len(s.Accepted), r.cfg.CandidatesPerRound)
	prompt := suggest.BuildPrompt(suggest.PromptInput{
		Seed:       *seed,
		SeedVector: seedVec,
		RandomSeed: s.RandomSeed,
		Hint:       s.Params.Hint,
		Accepted:   j.acceptedExamples(),
		Rejected:   j.rejected,
		Exclude:    j.exclude,
		Needed:     needed,
		Window:     r.cfg.ContextWindow,
	})

	candidates := r.ask(ctx, prompt, s, log)
	res.Candidates = len(candidates)

	if len(candidates) > 0 {
		j.update(func(st *domain.JobSnapshot) { st.CurrentStep = "matching candidates" })
		matches := r.match(ctx, j, seed, candidates, &res, log)

		if len(matches) > 0 {
			j.update(func(st *domain.JobSnapshot) { st.CurrentStep = "scoring candidates" })
			r.score(ctx, j, seedVec, matches, s, &res, log)
		}
	}

	res.Duration = time.Since(roundStart)
	j.update(func(st *domain.JobSnapshot) {
		st.TotalCandidates += res.Candidates
		st.Duplicates += res.Duplicates
		st.Unmatched += res.Unmatched
		st.Rejected += res.Rejected
		st.Progress = progress(len(st.Accepted), st.TargetCount)
	})
	r.observer.RoundCompleted(res)

	log.Info("Round finished", "attempt", s.Attempts, "candidates", res.Candidates, "accepted", res.Accepted,
		"duplicates", res.Duplicates, "unmatched", res.Unmatched, "rejected", res.Rejected)
}

// ask calls the suggestion source under its own timeout. Any failure means
// no candidates this round.
func (r *Runner) ask(ctx context.Context, prompt string, s domain.JobSnapshot, log *logger.Logger) []domain.Candidate {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.SuggestionTimeout)
	defer cancel()

	candidates, err := r.source.Suggest(callCtx, suggest.Request{
		Prompt: prompt,
		Params: s.Params,
		Seed:   suggest.SeedFromString(s.RandomSeed) + int64(s.Attempts),
	})
	if err != nil {
		if errors.Is(err, suggest.ErrNoCandidates) {
			log.Warn("Suggestion source returned no usable candidates", "attempt", s.Attempts)
		} else {
			log.Warn("Suggestion request failed", "attempt", s.Attempts, "error", err)
			r.observer.SuggestionFailed(r.source.Name())
		}
		return nil
	}
	return candidates
}

func (r *Runner) match(ctx context.Context, j *job, seed *domain.Track, candidates []domain.Candidate, res *RoundResult, log *logger.Logger) []match {
	var matches []match
	inRound := make(map[int64]struct{})

	for _, c := range candidates {
		if !j.markSeen(c) {
			res.Duplicates++
			continue
		}

		track, kind, err := r.resolver.Resolve(ctx, c)
		if err != nil {
			log.Warn("Candidate lookup failed", "candidate", c.Display(), "error", err)
			j.unmarkSeen(c)
			res.Unmatched++
			continue
		}
		if track == nil {
			res.Unmatched++
			j.reject(c, "not in library")
			continue
		}

		_, accepted := j.acceptedIDs[track.ID]
		_, dup := inRound[track.ID]
		if track.ID == seed.ID || accepted || dup {
			res.Duplicates++
			continue
		}
		inRound[track.ID] = struct{}{}

		log.Debug("Candidate matched", "candidate", c.Display(), "track_id", track.ID, "match", kind)
		matches = append(matches, match{candidate: c, track: *track})
	}
	return matches
}

func (r *Runner) score(ctx context.Context, j *job, seedVec domain.Vector, matches []match, s domain.JobSnapshot, res *RoundResult, log *logger.Logger) {
	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.track.ID
	}
	vectors := r.vectors.VectorsFor(ctx, ids)

	scored := make([]match, 0, len(matches))
	candVecs := make([]domain.Vector, 0, len(matches))
	for _, m := range matches {
		v, ok := vectors[m.track.ID]
		if !ok {
			res.Rejected++
			j.reject(m.candidate, "no audio features")
			continue
		}
		scored = append(scored, m)
		candVecs = append(candVecs, v)
	}

	accepted := len(s.Accepted)
	for i, d := range r.vectors.DistanceMany(seedVec, candVecs) {
		if accepted >= s.TargetCount {
			break
		}
		m := scored[i]
		if d > s.Threshold {
			res.Rejected++
			j.reject(m.candidate, fmt.Sprintf("too different, distance %.3f", d))
			log.Debug("Candidate rejected", "track_id", m.track.ID, "distance", d)
			continue
		}
		j.accept(domain.ScoredCandidate{Candidate: m.candidate, Track: m.track, Distance: d})
		accepted++
		res.Accepted++
		log.Debug("Candidate accepted", "track_id", m.track.ID, "distance", d)
	}
}
