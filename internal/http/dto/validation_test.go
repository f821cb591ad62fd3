package dto

import (
	"testing"
	"time"

	"github.com/icewall905/tuneforge/internal/domain"
)

func int64Ptr(v int64) *int64     { return &v }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "target_count", Message: "is required"}
	if err.Error() != "target_count: is required" {
		t.Errorf("Error() = %q, want %q", err.Error(), "target_count: is required")
	}
}

func TestValidationError_ToMap(t *testing.T) {
	err := ValidationError{Field: "threshold", Message: "must not be negative"}
	m := err.ToMap()
	if m["threshold"] != "must not be negative" {
		t.Errorf("ToMap() = %v", m)
	}
}

func TestToResponse(t *testing.T) {
	errs := []ValidationError{
		{Field: "seed_track_id", Message: "is required"},
		{Field: "target_count", Message: "invalid"},
	}
	resp := ToResponse(errs)
	expected := "seed_track_id: is required; target_count: invalid"
	if resp != expected {
		t.Errorf("ToResponse() = %q, want %q", resp, expected)
	}
	if len(ToMap(errs)) != 2 {
		t.Errorf("ToMap() returned %d items, want 2", len(ToMap(errs)))
	}
}

func TestStartRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		req      StartRequest
		wantErrs int
	}{
		{"minimal", StartRequest{SeedTrackID: int64Ptr(1), TargetCount: intPtr(10)}, 0},
		{"zero threshold allowed", StartRequest{SeedTrackID: int64Ptr(1), TargetCount: intPtr(10), Threshold: floatPtr(0)}, 0},
		{"empty body", StartRequest{}, 2},
		{"negative seed", StartRequest{SeedTrackID: int64Ptr(-3), TargetCount: intPtr(10)}, 1},
		{"zero target", StartRequest{SeedTrackID: int64Ptr(1), TargetCount: intPtr(0)}, 1},
		{"huge target", StartRequest{SeedTrackID: int64Ptr(1), TargetCount: intPtr(501)}, 1},
		{"negative threshold", StartRequest{SeedTrackID: int64Ptr(1), TargetCount: intPtr(5), Threshold: floatPtr(-1)}, 1},
		{"zero attempts", StartRequest{SeedTrackID: int64Ptr(1), TargetCount: intPtr(5), MaxAttempts: intPtr(0)}, 1},
		{"hot temperature", StartRequest{SeedTrackID: int64Ptr(1), TargetCount: intPtr(5), Temperature: floatPtr(3)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.req.Validate()
			if len(errs) != tt.wantErrs {
				t.Errorf("Validate() returned %d errors (%s), want %d", len(errs), ToResponse(errs), tt.wantErrs)
			}
		})
	}
}

func TestStartRequest_ToDomain(t *testing.T) {
	req := StartRequest{
		SeedTrackID: int64Ptr(42),
		TargetCount: intPtr(25),
		Threshold:   floatPtr(0.5),
		Temperature: floatPtr(0.9),
		Hint:        "more guitars",
	}

	out := req.ToDomain()
	if out.SeedTrackID != 42 || out.TargetCount != 25 {
		t.Errorf("Unexpected ids: %+v", out)
	}
	if out.Threshold == nil || *out.Threshold != 0.5 {
		t.Errorf("Expected threshold 0.5, got %v", out.Threshold)
	}
	if out.MaxAttempts != 0 {
		t.Errorf("Expected absent max attempts to stay zero, got %d", out.MaxAttempts)
	}
	if out.Params.Temperature != 0.9 || out.Params.Hint != "more guitars" {
		t.Errorf("Unexpected params: %+v", out.Params)
	}
}

func TestNewJobResponse(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := domain.JobSnapshot{
		ID:          "job-1",
		Status:      domain.JobStatusRunning,
		CreatedAt:   created,
		UpdatedAt:   created.Add(time.Minute),
		SeedTrackID: 7,
		TargetCount: 10,
		Accepted: []domain.ScoredCandidate{
			{Track: domain.Track{ID: 2, Title: "Loser", Artist: "Beck"}, Distance: 0.2},
		},
	}

	resp := NewJobResponse(snap)
	if resp.CreatedAt != "2024-03-01T12:00:00Z" {
		t.Errorf("CreatedAt = %s", resp.CreatedAt)
	}
	if resp.AcceptedCount != 1 || resp.Status != "running" {
		t.Errorf("Unexpected response: %+v", resp)
	}

	tracks := NewTrackResponses(snap.Accepted)
	if len(tracks) != 1 || tracks[0].Title != "Loser" || tracks[0].Distance != 0.2 {
		t.Errorf("Unexpected tracks: %+v", tracks)
	}
	if NewTrackResponses(nil) == nil {
		t.Error("Expected empty, non-nil track list")
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name                string
		page, size, total   int
		wantPage, wantPages int
		wantStart, wantEnd  int
		hasPrev, hasNext    bool
	}{
		{"first page", 1, 10, 25, 1, 3, 0, 10, false, true},
		{"last page", 3, 10, 25, 3, 3, 20, 25, true, false},
		{"past the end", 9, 10, 25, 3, 3, 20, 25, true, false},
		{"empty", 1, 10, 0, 1, 1, 0, 0, false, false},
		{"defaults", 0, 0, 5, 1, 1, 0, 5, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.size, tt.total)
			if p.CurrentPage != tt.wantPage || p.TotalPages != tt.wantPages {
				t.Errorf("page %d of %d, want %d of %d", p.CurrentPage, p.TotalPages, tt.wantPage, tt.wantPages)
			}
			if p.HasPrev != tt.hasPrev || p.HasNext != tt.hasNext {
				t.Errorf("prev/next = %v/%v", p.HasPrev, p.HasNext)
			}
			start, end := p.Bounds()
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Bounds() = %d..%d, want %d..%d", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
