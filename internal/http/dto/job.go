package dto

import (
	"time"

	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/expansion"
)

// StartRequest is the body of POST /api/sonic/start. Pointers tell absent
// fields apart from explicit zeros.
type StartRequest struct {
	SeedTrackID *int64   `json:"seed_track_id"`
	TargetCount *int     `json:"target_count"`
	Threshold   *float64 `json:"threshold"`
	MaxAttempts *int     `json:"max_attempts"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Hint        string   `json:"hint"`
}

func (r *StartRequest) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateSeedTrackID(r.SeedTrackID)...)
	errs = append(errs, validateTargetCount(r.TargetCount)...)
	errs = append(errs, validateThreshold(r.Threshold)...)
	errs = append(errs, validateMaxAttempts(r.MaxAttempts)...)
	errs = append(errs, validateTemperature(r.Temperature)...)

	return errs
}

// ToDomain converts a validated request.
func (r *StartRequest) ToDomain() expansion.StartRequest {
	req := expansion.StartRequest{
		Threshold: r.Threshold,
		Params: domain.SuggestionParams{
			Model: r.Model,
			Hint:  r.Hint,
		},
	}
	if r.SeedTrackID != nil {
		req.SeedTrackID = *r.SeedTrackID
	}
	if r.TargetCount != nil {
		req.TargetCount = *r.TargetCount
	}
	if r.MaxAttempts != nil {
		req.MaxAttempts = *r.MaxAttempts
	}
	if r.Temperature != nil {
		req.Params.Temperature = *r.Temperature
	}
	return req
}

type StartResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type TrackResponse struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album,omitempty"`
	Distance float64 `json:"distance"`
}

func NewTrackResponses(accepted []domain.ScoredCandidate) []TrackResponse {
	out := make([]TrackResponse, 0, len(accepted))
	for _, a := range accepted {
		out = append(out, TrackResponse{
			ID:       a.Track.ID,
			Title:    a.Track.Title,
			Artist:   a.Track.Artist,
			Album:    a.Track.Album,
			Distance: a.Distance,
		})
	}
	return out
}

type JobResponse struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	CurrentStep     string  `json:"current_step"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	Error           string  `json:"error,omitempty"`
	RandomSeed      string  `json:"random_seed"`
	SeedTrackID     int64   `json:"seed_track_id"`
	Threshold       float64 `json:"threshold"`
	Progress        float64 `json:"progress"`
	TargetCount     int     `json:"target_count"`
	AcceptedCount   int     `json:"accepted_count"`
	Attempts        int     `json:"attempts"`
	MaxAttempts     int     `json:"max_attempts"`
	TotalCandidates int     `json:"total_candidates"`
	Duplicates      int     `json:"duplicates"`
	Unmatched       int     `json:"unmatched"`
	Rejected        int     `json:"rejected"`
}

func NewJobResponse(s domain.JobSnapshot) JobResponse {
	return JobResponse{
		ID:              s.ID,
		Status:          string(s.Status),
		CurrentStep:     s.CurrentStep,
		CreatedAt:       s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       s.UpdatedAt.Format(time.RFC3339),
		Error:           s.Error,
		RandomSeed:      s.RandomSeed,
		SeedTrackID:     s.SeedTrackID,
		Threshold:       s.Threshold,
		Progress:        s.Progress,
		TargetCount:     s.TargetCount,
		AcceptedCount:   s.AcceptedCount(),
		Attempts:        s.Attempts,
		MaxAttempts:     s.MaxAttempts,
		TotalCandidates: s.TotalCandidates,
		Duplicates:      s.Duplicates,
		Unmatched:       s.Unmatched,
		Rejected:        s.Rejected,
	}
}

type ResultResponse struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"status"`
	Tracks []TrackResponse `json:"tracks"`
}

type JobListResponse struct {
	Jobs       []JobResponse `json:"jobs"`
	Pagination *Pagination   `json:"pagination"`
}
