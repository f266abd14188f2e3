package dispatch

import (
	"errors"
	"fmt"
)

// ErrAllBackendsExhausted indicates every retry pass over every admitted
// target failed.
var ErrAllBackendsExhausted = errors.New("all backends exhausted")

// ExhaustedError is the terminal dispatch failure. It carries the last
// per-attempt cause so callers can see why the final attempt failed.
type ExhaustedError struct {
	Endpoint string
	Passes   int
	Cause    error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("all backends exhausted for %s after %d passes: %v", e.Endpoint, e.Passes, e.Cause)
	}
	return fmt.Sprintf("all backends exhausted for %s after %d passes", e.Endpoint, e.Passes)
}

// Unwrap returns the last attempt's cause.
func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// Is matches ErrAllBackendsExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllBackendsExhausted
}

// StatusError is a backend reply with a non-success status code.
type StatusError struct {
	URL    string
	Status int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s replied %d", e.URL, e.Status)
}

// NetworkError is a failed or timed-out backend call.
type NetworkError struct {
	URL     string
	Timeout bool
	Err     error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("backend %s timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("backend %s unreachable: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}
