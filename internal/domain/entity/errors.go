package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no application matches the receipt or id
	ErrNotFound = errors.New("application not found")

	// ErrMissingParameter is returned when a required operation argument is absent,
	// such as a rejection without a reason
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrStatusConflict is returned when a compare-and-swap status write finds
	// a different stored status than expected
	ErrStatusConflict = errors.New("application status changed concurrently")

	// ErrInvalidStatus is returned for an unknown status value
	ErrInvalidStatus = errors.New("invalid application status")

	// ErrInvalidSubmission is returned when a submission's type does not match its payload
	ErrInvalidSubmission = errors.New("submission type does not match payload")
)

// StorageError wraps a backing store failure. It is opaque to callers and never retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError. Domain sentinels pass through unchanged.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMissingParameter) || errors.Is(err, ErrStatusConflict) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is, or wraps, a StorageError
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
