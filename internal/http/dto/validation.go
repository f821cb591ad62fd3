package dto

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) ToMap() map[string]string {
	return map[string]string{e.Field: e.Message}
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func validateSeedTrackID(id *int64) []ValidationError {
	var errs []ValidationError
	if id == nil {
		errs = append(errs, ValidationError{Field: "seed_track_id", Message: "is required"})
	} else if *id <= 0 {
		errs = append(errs, ValidationError{Field: "seed_track_id", Message: "must be a positive track id"})
	}
	return errs
}

func validateTargetCount(n *int) []ValidationError {
	var errs []ValidationError
	if n == nil {
		errs = append(errs, ValidationError{Field: "target_count", Message: "is required"})
	} else if *n < 1 || *n > 500 {
		errs = append(errs, ValidationError{Field: "target_count", Message: "must be between 1 and 500"})
	}
	return errs
}

func validateThreshold(threshold *float64) []ValidationError {
	var errs []ValidationError
	if threshold != nil && *threshold < 0 {
		errs = append(errs, ValidationError{Field: "threshold", Message: "must not be negative"})
	}
	return errs
}

func validateMaxAttempts(n *int) []ValidationError {
	var errs []ValidationError
	if n != nil {
		if *n < 1 || *n > 100 {
			errs = append(errs, ValidationError{Field: "max_attempts", Message: "must be between 1 and 100"})
		}
	}
	return errs
}

func validateTemperature(temp *float64) []ValidationError {
	var errs []ValidationError
	if temp != nil {
		if *temp < 0 || *temp > 2 {
			errs = append(errs, ValidationError{Field: "temperature", Message: "must be between 0 and 2"})
		}
	}
	return errs
}
