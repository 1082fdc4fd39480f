package workflow

import "errors"

var (
	// ErrInvalidTransition means the trigger is not allowed from the current status
	ErrInvalidTransition = errors.New("invalid state transition")

	ErrInvalidState = errors.New("invalid state")
)
