package domain

import (
	"database/sql"
	"fmt"
	"time"
)

// Track is a catalog track. Read-only from this service's perspective.
type Track struct {
	ID     int64          `json:"id" db:"id"`
	Title  string         `json:"title" db:"title"`
	Artist string         `json:"artist" db:"artist"`
	Album  string         `json:"album" db:"album"`
	Genre  sql.NullString `json:"-" db:"genre"`
}

// Display renders "Artist - Title".
func (t Track) Display() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// Candidate is a track proposed by a suggestion source, not yet resolved
// against the catalog.
type Candidate struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
}

// Key returns the deduplication key of the candidate.
func (c Candidate) Key() MatchKey {
	return NewMatchKey(c.Title, c.Artist)
}

func (c Candidate) Display() string {
	return fmt.Sprintf("%s - %s", c.Artist, c.Title)
}

// ScoredCandidate is a candidate resolved to a catalog track, with its
// weighted distance to the seed.
type ScoredCandidate struct {
	Candidate Candidate `json:"candidate"`
	Track     Track     `json:"track"`
	Distance  float64   `json:"distance"`
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusStopped   JobStatus = "stopped"
)

// IsTerminal reports whether no further transitions can happen.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusStopped
}

// SuggestionParams tune the suggestion source for one job.
type SuggestionParams struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Hint        string  `json:"hint,omitempty"` // free-text likes/mood added to prompts
}

// JobSnapshot is an immutable copy of an expansion job's state.
type JobSnapshot struct {
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	ID              string            `json:"id"`
	Status          JobStatus         `json:"status"`
	CurrentStep     string            `json:"current_step"`
	RandomSeed      string            `json:"random_seed"`
	Error           string            `json:"error,omitempty"`
	Params          SuggestionParams  `json:"params"`
	Accepted        []ScoredCandidate `json:"accepted"`
	SeedTrackID     int64             `json:"seed_track_id"`
	Threshold       float64           `json:"threshold"`
	Progress        float64           `json:"progress"`
	TargetCount     int               `json:"target_count"`
	Attempts        int               `json:"attempts"`
	MaxAttempts     int               `json:"max_attempts"`
	TotalCandidates int               `json:"total_candidates"`
	Duplicates      int               `json:"duplicates"`
	Unmatched       int               `json:"unmatched"`
	Rejected        int               `json:"rejected"`
}

// AcceptedCount is the number of accepted tracks so far.
func (s JobSnapshot) AcceptedCount() int {
	return len(s.Accepted)
}
