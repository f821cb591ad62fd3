package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
)

// jobRecord is the persisted form of a job snapshot. Params and accepted
// tracks are stored as JSON text.
type jobRecord struct {
	CreatedAt       time.Time        `db:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"`
	ID              string           `db:"id"`
	Status          domain.JobStatus `db:"status"`
	CurrentStep     string           `db:"current_step"`
	RandomSeed      string           `db:"random_seed"`
	Error           sql.NullString   `db:"error"`
	Params          string           `db:"params"`
	Accepted        string           `db:"accepted"`
	SeedTrackID     int64            `db:"seed_track_id"`
	Threshold       float64          `db:"threshold"`
	Progress        float64          `db:"progress"`
	TargetCount     int              `db:"target_count"`
	Attempts        int              `db:"attempts"`
	MaxAttempts     int              `db:"max_attempts"`
	TotalCandidates int              `db:"total_candidates"`
	Duplicates      int              `db:"duplicates"`
	Unmatched       int              `db:"unmatched"`
	Rejected        int              `db:"rejected"`
}

const jobColumns = `id, seed_track_id, status, threshold, target_count, attempts, max_attempts,
	progress, current_step, random_seed, error, params, accepted,
	total_candidates, duplicates, unmatched, rejected, created_at, updated_at`

func newJobRecord(s domain.JobSnapshot) (jobRecord, error) {
	params, err := json.Marshal(s.Params)
	if err != nil {
		return jobRecord{}, fmt.Errorf("failed to encode params: %w", err)
	}
	accepted := s.Accepted
	if accepted == nil {
		accepted = []domain.ScoredCandidate{}
	}
	acc, err := json.Marshal(accepted)
	if err != nil {
		return jobRecord{}, fmt.Errorf("failed to encode accepted tracks: %w", err)
	}

	// Timestamps are stored in UTC so text ordering matches time ordering.
	return jobRecord{
		CreatedAt:       s.CreatedAt.UTC(),
		UpdatedAt:       s.UpdatedAt.UTC(),
		ID:              s.ID,
		Status:          s.Status,
		CurrentStep:     s.CurrentStep,
		RandomSeed:      s.RandomSeed,
		Error:           sql.NullString{String: s.Error, Valid: s.Error != ""},
		Params:          string(params),
		Accepted:        string(acc),
		SeedTrackID:     s.SeedTrackID,
		Threshold:       s.Threshold,
		Progress:        s.Progress,
		TargetCount:     s.TargetCount,
		Attempts:        s.Attempts,
		MaxAttempts:     s.MaxAttempts,
		TotalCandidates: s.TotalCandidates,
		Duplicates:      s.Duplicates,
		Unmatched:       s.Unmatched,
		Rejected:        s.Rejected,
	}, nil
}

func (r jobRecord) toSnapshot() (domain.JobSnapshot, error) {
	s := domain.JobSnapshot{
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ID:              r.ID,
		Status:          r.Status,
		CurrentStep:     r.CurrentStep,
		RandomSeed:      r.RandomSeed,
		Error:           r.Error.String,
		SeedTrackID:     r.SeedTrackID,
		Threshold:       r.Threshold,
		Progress:        r.Progress,
		TargetCount:     r.TargetCount,
		Attempts:        r.Attempts,
		MaxAttempts:     r.MaxAttempts,
		TotalCandidates: r.TotalCandidates,
		Duplicates:      r.Duplicates,
		Unmatched:       r.Unmatched,
		Rejected:        r.Rejected,
	}
	if err := json.Unmarshal([]byte(r.Params), &s.Params); err != nil {
		return s, fmt.Errorf("failed to decode params of job %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Accepted), &s.Accepted); err != nil {
		return s, fmt.Errorf("failed to decode accepted tracks of job %s: %w", r.ID, err)
	}
	return s, nil
}

// SaveJob inserts or replaces a job snapshot.
func (db *DB) SaveJob(ctx context.Context, snap domain.JobSnapshot) error {
	rec, err := newJobRecord(snap)
	if err != nil {
		return err
	}

	query := `INSERT INTO ` + constants.JobsTable + ` (` + jobColumns + `)
		VALUES (:id, :seed_track_id, :status, :threshold, :target_count, :attempts, :max_attempts,
			:progress, :current_step, :random_seed, :error, :params, :accepted,
			:total_candidates, :duplicates, :unmatched, :rejected, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			progress = excluded.progress,
			current_step = excluded.current_step,
			error = excluded.error,
			accepted = excluded.accepted,
			total_candidates = excluded.total_candidates,
			duplicates = excluded.duplicates,
			unmatched = excluded.unmatched,
			rejected = excluded.rejected,
			updated_at = excluded.updated_at`

	if _, err := db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to save job %s: %w", snap.ID, err)
	}
	return nil
}

// GetJob loads a persisted job snapshot.
func (db *DB) GetJob(ctx context.Context, id string) (domain.JobSnapshot, error) {
	var rec jobRecord
	err := db.GetContext(ctx, &rec, "SELECT "+jobColumns+" FROM "+constants.JobsTable+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobSnapshot{}, ErrNotFound
	}
	if err != nil {
		return domain.JobSnapshot{}, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return rec.toSnapshot()
}

// ListJobs returns the most recently updated jobs first.
func (db *DB) ListJobs(ctx context.Context, limit int) ([]domain.JobSnapshot, error) {
	if limit <= 0 {
		limit = constants.MaxHistoryItems
	}

	var recs []jobRecord
	query := "SELECT " + jobColumns + " FROM " + constants.JobsTable + " ORDER BY updated_at DESC, id ASC LIMIT ?"
	if err := db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	out := make([]domain.JobSnapshot, 0, len(recs))
	for _, r := range recs {
		s, err := r.toSnapshot()
		if err != nil {
			db.Logger.Warn("Skipping unreadable job record", "job_id", r.ID, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// DeleteFinishedJobs removes every terminal job and returns how many went.
func (db *DB) DeleteFinishedJobs(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM "+constants.JobsTable+" WHERE status IN (?, ?, ?)",
		domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusStopped)
	if err != nil {
		return 0, fmt.Errorf("failed to clear finished jobs: %w", err)
	}
	return res.RowsAffected()
}

// PruneJobs keeps only the newest keep jobs.
func (db *DB) PruneJobs(ctx context.Context, keep int) error {
	query := "DELETE FROM " + constants.JobsTable + " WHERE id NOT IN (SELECT id FROM " +
		constants.JobsTable + " ORDER BY updated_at DESC LIMIT ?)"
	if _, err := db.ExecContext(ctx, query, keep); err != nil {
		return fmt.Errorf("failed to prune jobs: %w", err)
	}
	return nil
}

// FailInterruptedJobs marks jobs that were queued or running when the
// process died as failed.
func (db *DB) FailInterruptedJobs(ctx context.Context, reason string, at time.Time) (int64, error) {
	query := "UPDATE " + constants.JobsTable + ` SET status = ?, error = ?, current_step = 'failed', updated_at = ?
		WHERE status IN (?, ?)`
	res, err := db.ExecContext(ctx, query, domain.JobStatusFailed, reason, at.UTC(),
		domain.JobStatusQueued, domain.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to reset interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

type JobStats struct {
	Total     int `db:"total" json:"total"`
	Completed int `db:"completed" json:"completed"`
	Failed    int `db:"failed" json:"failed"`
	Stopped   int `db:"stopped" json:"stopped"`
}

// GetJobStats counts persisted jobs by terminal status.
func (db *DB) GetJobStats(ctx context.Context) (*JobStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed,
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed,
		COALESCE(SUM(CASE WHEN status = 'stopped' THEN 1 ELSE 0 END), 0) AS stopped
	FROM ` + constants.JobsTable

	stats := &JobStats{}
	if err := db.GetContext(ctx, stats, query); err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return stats, nil
}
