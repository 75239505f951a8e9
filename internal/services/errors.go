package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrConflict          = errors.New("record already finalized")
	ErrForbidden         = errors.New("forbidden")
)

// AmountExceedsAvailableError carries the currently available amount so
// callers can retry with a smaller one instead of guessing.
type AmountExceedsAvailableError struct {
	RequestedMinor int64
	AvailableMinor int64
}

func (e *AmountExceedsAvailableError) Error() string {
	return fmt.Sprintf(
		"requested amount %d exceeds available %d",
		e.RequestedMinor,
		e.AvailableMinor,
	)
}
