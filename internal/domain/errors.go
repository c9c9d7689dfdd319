package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrServerUnavailable = errors.New("server unavailable")
	ErrValidation        = errors.New("validation error")

	// ErrInvalidInput is returned for caller mistakes caught before any store is touched.
	ErrInvalidInput = errors.New("invalid input")

	ErrRecordNotFound = errors.New("record not found")
)

// RemoteError is the single error type produced by the remote cart client.
type RemoteError struct {
	Op     string
	Status int // 0 when no response was received
	Kind   error
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote cart %s: %v (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("remote cart %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel so callers can use errors.Is(err, ErrServerUnavailable).
func (e *RemoteError) Is(target error) bool {
	return target == e.Kind
}

// KindOf classifies err into one of the remote sentinels. Unknown errors count as
// ErrServerUnavailable since the remote state is then unknown.
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnauthenticated):
		return ErrUnauthenticated
	case errors.Is(err, ErrValidation):
		return ErrValidation
	default:
		return ErrServerUnavailable
	}
}
