package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned until the first snapshot has been fetched.
	// The view has nothing to fall back to in that state.
	ErrNotLoaded = errors.New("board not loaded")

	// ErrMoveInFlight rejects a mutation of a task whose previous change
	// has not been confirmed yet.
	ErrMoveInFlight = errors.New("task has an unconfirmed change in flight")

	ErrClosed             = errors.New("engine closed")
	ErrInvalidWipLimit    = errors.New("wip limit must be at least 1")
	ErrWipLimitNotAllowed = errors.New("column does not allow a wip limit")
	ErrUnknownColumn      = errors.New("unknown column")
	ErrTaskNotFound       = errors.New("task not found")
	ErrEmptyTitle         = errors.New("task title is required")
)

// RejectionError is a policy outcome, not a failure. Callers show it to the
// user and carry on.
type RejectionError struct {
	TaskID string
	Reason Reason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("move of %s rejected: %s", e.TaskID, e.Reason)
}

// IsRejection reports whether err is a policy rejection and returns its
// reason.
func IsRejection(err error) (Reason, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}

// PersistError wraps a failed call to the server of record. Local state has
// already been rolled back when it is returned.
type PersistError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *PersistError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("persist %s [%s]: %v", e.Op, e.TaskID, e.Err)
	}
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// FetchError wraps a failed snapshot fetch.
type FetchError struct {
	BoardID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch board %s: %v", e.BoardID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
