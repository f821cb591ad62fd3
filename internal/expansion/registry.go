package expansion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/logger"
	"github.com/icewall905/tuneforge/internal/store"
)

// History persists job snapshots beyond the life of the process.
type History interface {
	SaveJob(ctx context.Context, snap domain.JobSnapshot) error
	GetJob(ctx context.Context, id string) (domain.JobSnapshot, error)
	ListJobs(ctx context.Context, limit int) ([]domain.JobSnapshot, error)
	DeleteFinishedJobs(ctx context.Context) (int64, error)
	PruneJobs(ctx context.Context, keep int) error
	FailInterruptedJobs(ctx context.Context, reason string, at time.Time) (int64, error)
}

// StartRequest describes a new expansion job. Zero MaxAttempts and a nil
// Threshold take the configured defaults.
type StartRequest struct {
	Threshold   *float64                `json:"threshold,omitempty" validate:"omitempty,gte=0"`
	Params      domain.SuggestionParams `json:"params"`
	SeedTrackID int64                   `json:"seed_track_id" validate:"gt=0"`
	TargetCount int                     `json:"target_count" validate:"gt=0,lte=500"`
	MaxAttempts int                     `json:"max_attempts,omitempty" validate:"gte=0,lte=100"`
}

type RegistryConfig struct {
	DefaultThreshold   float64
	DefaultMaxAttempts int
	MaxConcurrentJobs  int
	JobRetention       int
}

// Registry owns every job of this process. Status, Stop and Result never
// wait on a running job.
type Registry struct {
	runner   *Runner
	history  History
	logger   *logger.Logger
	validate *validator.Validate
	now      func() time.Time
	cfg      RegistryConfig

	jobs map[string]*job
	mu   sync.RWMutex

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRegistry(runner *Runner, history History, cfg RegistryConfig, log *logger.Logger) *Registry {
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = constants.DefaultMaxAttempts
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = constants.DefaultMaxConcurrentJobs
	}
	if cfg.JobRetention <= 0 {
		cfg.JobRetention = constants.DefaultJobRetention
	}
	if log == nil {
		log = logger.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		runner:   runner,
		history:  history,
		logger:   log.WithComponent("registry"),
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		cfg:      cfg,
		jobs:     make(map[string]*job),
		sem:      make(chan struct{}, cfg.MaxConcurrentJobs),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Recover marks jobs a previous process left running as failed.
func (r *Registry) Recover(ctx context.Context) {
	if r.history == nil {
		return
	}
	n, err := r.history.FailInterruptedJobs(ctx, "interrupted by restart", r.now())
	if err != nil {
		r.logger.Error("Failed to reset interrupted jobs", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("Marked interrupted jobs as failed", "count", n)
	}
}

func (r *Registry) validateRequest(req StartRequest) error {
	if err := r.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Start registers a queued job and runs it in the background.
func (r *Registry) Start(ctx context.Context, req StartRequest) (string, error) {
	if err := r.validateRequest(req); err != nil {
		return "", err
	}

	threshold := r.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = r.cfg.DefaultMaxAttempts
	}

	now := r.now()
	state := domain.JobSnapshot{
		ID:          uuid.New().String(),
		Status:      domain.JobStatusQueued,
		CurrentStep: "queued",
		RandomSeed:  newRandomSeed(),
		Params:      req.Params,
		Accepted:    []domain.ScoredCandidate{},
		SeedTrackID: req.SeedTrackID,
		Threshold:   threshold,
		TargetCount: req.TargetCount,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	j := newJob(state, r.now)

	r.mu.Lock()
	r.jobs[state.ID] = j
	r.mu.Unlock()

	r.persist(ctx, state)
	r.logger.Info("Expansion job queued", "job_id", state.ID, "seed_track_id", req.SeedTrackID,
		"target", req.TargetCount, "threshold", threshold, "max_attempts", maxAttempts)

	r.wg.Add(1)
	go r.work(j)

	return state.ID, nil
}

func (r *Registry) work(j *job) {
	defer r.wg.Done()
	defer close(j.done)

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
		r.runner.Run(r.ctx, j)
	case <-j.stop:
	case <-r.ctx.Done():
		j.requestStop()
	}

	r.persist(context.Background(), j.snapshot())
}

func (r *Registry) persist(ctx context.Context, snap domain.JobSnapshot) {
	if r.history == nil {
		return
	}
	if err := r.history.SaveJob(ctx, snap); err != nil {
		r.logger.Warn("Failed to persist job", "job_id", snap.ID, "error", err)
		return
	}
	if snap.Status.IsTerminal() {
		if err := r.history.PruneJobs(ctx, r.cfg.JobRetention); err != nil {
			r.logger.Warn("Failed to prune job history", "error", err)
		}
	}
}

func (r *Registry) get(id string) (*job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// Status returns a snapshot of the job. Jobs from earlier runs are served
// from history.
func (r *Registry) Status(ctx context.Context, id string) (domain.JobSnapshot, error) {
	if j, ok := r.get(id); ok {
		return j.snapshot(), nil
	}
	if r.history != nil {
		snap, err := r.history.GetJob(ctx, id)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.JobSnapshot{}, err
		}
	}
	return domain.JobSnapshot{}, ErrJobNotFound
}

// Stop requests cancellation. Stopping a finished job is a no-op.
func (r *Registry) Stop(ctx context.Context, id string) error {
	j, ok := r.get(id)
	if !ok {
		if _, err := r.Status(ctx, id); err != nil {
			return err
		}
		return nil
	}
	if j.status().IsTerminal() {
		return nil
	}
	if j.requestStop() {
		r.logger.Info("Expansion job stopped before start", "job_id", id)
	} else {
		r.logger.Info("Expansion job stop requested", "job_id", id)
	}
	return nil
}

// Result returns the final accepted list once the job is terminal.
func (r *Registry) Result(ctx context.Context, id string) ([]domain.ScoredCandidate, error) {
	snap, err := r.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if !snap.Status.IsTerminal() {
		return nil, ErrJobPending
	}
	return snap.Accepted, nil
}

// Wait blocks until the job's worker has exited or ctx is done.
func (r *Registry) Wait(ctx context.Context, id string) error {
	j, ok := r.get(id)
	if !ok {
		return ErrJobNotFound
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns live and persisted jobs, newest first.
func (r *Registry) List(ctx context.Context, limit int) ([]domain.JobSnapshot, error) {
	if limit <= 0 {
		limit = constants.MaxHistoryItems
	}

	byID := make(map[string]domain.JobSnapshot)
	if r.history != nil {
		persisted, err := r.history.ListJobs(ctx, limit)
		if err != nil {
			return nil, err
		}
		for _, s := range persisted {
			byID[s.ID] = s
		}
	}

	r.mu.RLock()
	for id, j := range r.jobs {
		byID[id] = j.snapshot()
	}
	r.mu.RUnlock()

	out := make([]domain.JobSnapshot, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ClearFinished forgets every terminal job, in memory and in history.
func (r *Registry) ClearFinished(ctx context.Context) (int, error) {
	removed := make(map[string]struct{})

	r.mu.Lock()
	for id, j := range r.jobs {
		select {
		case <-j.done:
			delete(r.jobs, id)
			removed[id] = struct{}{}
		default:
		}
	}
	r.mu.Unlock()

	if r.history != nil {
		persisted, err := r.history.ListJobs(ctx, r.cfg.JobRetention)
		if err == nil {
			for _, s := range persisted {
				if s.Status.IsTerminal() {
					removed[s.ID] = struct{}{}
				}
			}
		}
		if _, err := r.history.DeleteFinishedJobs(ctx); err != nil {
			return len(removed), err
		}
	}

	r.logger.Info("Cleared finished jobs", "count", len(removed))
	return len(removed), nil
}

// ActiveCount returns the number of queued or running jobs.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, j := range r.jobs {
		if !j.status().IsTerminal() {
			n++
		}
	}
	return n
}

// Shutdown stops every job and waits for workers until ctx is done.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newRandomSeed() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
