package expansion

import "errors"

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrJobPending     = errors.New("job has not finished")
	ErrInvalidRequest = errors.New("invalid expansion request")
)
