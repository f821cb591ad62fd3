package expansion

import (
	"math"
	"sync"
	"time"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/suggest"
)

// job pairs the published state, guarded by mu, with bookkeeping that only
// the worker goroutine touches.
type job struct {
	state domain.JobSnapshot
	mu    sync.RWMutex
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Worker-owned.
	seen        map[domain.MatchKey]struct{}
	acceptedIDs map[int64]struct{}
	rejected    []suggest.Rejection
	exclude     []domain.Candidate
}

func newJob(state domain.JobSnapshot, now func() time.Time) *job {
	return &job{
		state:       state,
		now:         now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		seen:        make(map[domain.MatchKey]struct{}),
		acceptedIDs: make(map[int64]struct{}),
	}
}

// snapshot returns a copy that shares nothing with the live state.
func (j *job) snapshot() domain.JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s := j.state
	s.Accepted = append([]domain.ScoredCandidate(nil), j.state.Accepted...)
	if s.Accepted == nil {
		s.Accepted = []domain.ScoredCandidate{}
	}
	return s
}

func (j *job) update(fn func(s *domain.JobSnapshot)) {
	j.mu.Lock()
	fn(&j.state)
	j.state.UpdatedAt = j.now()
	j.mu.Unlock()
}

func (j *job) id() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state.ID
}

func (j *job) status() domain.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state.Status
}

// requestStop asks the worker to stop. A queued job is stopped on the spot
// and reports true.
func (j *job) requestStop() bool {
	stoppedNow := false
	j.mu.Lock()
	switch j.state.Status {
	case domain.JobStatusQueued:
		j.state.Status = domain.JobStatusStopped
		j.state.CurrentStep = "stopped before start"
		j.state.UpdatedAt = j.now()
		stoppedNow = true
	case domain.JobStatusRunning:
		j.state.CurrentStep = "stopping"
		j.state.UpdatedAt = j.now()
	}
	j.mu.Unlock()

	j.stopOnce.Do(func() { close(j.stop) })
	return stoppedNow
}

func (j *job) stopping() bool {
	select {
	case <-j.stop:
		return true
	default:
		return false
	}
}

// begin moves a queued job to running. It reports false when the job was
// stopped before the worker got to it.
func (j *job) begin() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status != domain.JobStatusQueued {
		return false
	}
	j.state.Status = domain.JobStatusRunning
	j.state.CurrentStep = "resolving seed track"
	j.state.UpdatedAt = j.now()
	return true
}

func (j *job) fail(msg string) {
	j.update(func(s *domain.JobSnapshot) {
		s.Status = domain.JobStatusFailed
		s.Error = msg
		s.CurrentStep = "failed"
	})
}

// finish freezes the accepted list in its final order.
func (j *job) finish(status domain.JobStatus) {
	j.update(func(s *domain.JobSnapshot) {
		s.Status = status
		s.Accepted = FinalOrder(s.Accepted, s.RandomSeed)
		s.Progress = progress(len(s.Accepted), s.TargetCount)
		if status == domain.JobStatusStopped {
			s.CurrentStep = "stopped"
		} else {
			s.CurrentStep = "completed"
		}
	})
}

func (j *job) markSeen(c domain.Candidate) bool {
	key := c.Key()
	if _, ok := j.seen[key]; ok {
		return false
	}
	j.seen[key] = struct{}{}
	j.exclude = append(j.exclude, c)
	return true
}

// unmarkSeen undoes markSeen for the candidate marked last, so a lookup that
// failed can be retried in a later round.
func (j *job) unmarkSeen(c domain.Candidate) {
	delete(j.seen, c.Key())
	if n := len(j.exclude); n > 0 && j.exclude[n-1].Key() == c.Key() {
		j.exclude = j.exclude[:n-1]
	}
}

func (j *job) reject(c domain.Candidate, reason string) {
	j.rejected = append(j.rejected, suggest.Rejection{Candidate: c, Reason: reason})
	if over := len(j.rejected) - constants.MaxRejectedExamples; over > 0 {
		j.rejected = append(j.rejected[:0:0], j.rejected[over:]...)
	}
}

func (j *job) accept(sc domain.ScoredCandidate) {
	j.acceptedIDs[sc.Track.ID] = struct{}{}
	// The catalog's spelling goes into later prompts and dedupe.
	j.markSeen(domain.Candidate{Title: sc.Track.Title, Artist: sc.Track.Artist, Album: sc.Track.Album})
	j.update(func(s *domain.JobSnapshot) {
		s.Accepted = append(s.Accepted, sc)
		s.Progress = progress(len(s.Accepted), s.TargetCount)
	})
}

func (j *job) acceptedExamples() []domain.Candidate {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]domain.Candidate, 0, len(j.state.Accepted))
	for _, a := range j.state.Accepted {
		out = append(out, domain.Candidate{Title: a.Track.Title, Artist: a.Track.Artist, Album: a.Track.Album})
	}
	return out
}

func progress(accepted, target int) float64 {
	if target <= 0 {
		return 0
	}
	return math.Min(100, 100*float64(accepted)/float64(target))
}
