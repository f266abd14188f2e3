package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors produced by the built-in stages.
var (
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the client exceeded its rate limit.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// StageError is a rejection produced by a pipeline stage, carrying the
// HTTP status the listener should answer with.
type StageError struct {
	Stage  string
	Status int
	Err    error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}
