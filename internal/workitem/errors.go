package workitem

import (
	"errors"

	"medannotate/internal/keywords"
)

var (
	// ErrNotFound indicates an operation referenced an unknown item.
	ErrNotFound = errors.New("work item not found")
	// ErrClaimConflict indicates every claim attempt lost a race with a
	// concurrent claimant, or that a guarded progress write found the vector
	// already changed. RequestWork treats it like no work being available.
	ErrClaimConflict = errors.New("claim conflict")
	// ErrInvariantViolation rejects malformed keyword progress or a
	// transition applied to a keyword that is not the cursor.
	ErrInvariantViolation = keywords.ErrInvariantViolation
	// ErrNotClaimed indicates a keyword action on an item that no annotator
	// currently holds for the track.
	ErrNotClaimed = errors.New("item not claimed")
	// ErrNotLockHolder indicates the caller does not hold the track lock.
	ErrNotLockHolder = errors.New("annotator does not hold the lock")
	// ErrInvalidInput marks malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// Kind classifies err for presentation layers. Unknown errors report
// "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrClaimConflict):
		return "conflict"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant"
	case errors.Is(err, ErrNotClaimed), errors.Is(err, ErrNotLockHolder):
		return "lock"
	case errors.Is(err, ErrInvalidInput):
		return "validation"
	default:
		return "internal"
	}
}
