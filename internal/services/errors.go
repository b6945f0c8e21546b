package services

import (
	"errors"
	"fmt"
)

// Caller-visible error kinds. Services wrap these with context; match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrPartialGraphUpdate = errors.New("partial graph update")
)

// PartialGraphUpdateError reports that the first side of a follow edge was
// written (or removed) but the second side could not be, leaving the graph
// asymmetric until the call is retried or the reconciler runs.
type PartialGraphUpdateError struct {
	Op         string // "follow" or "unfollow"
	FollowerID string
	FolloweeID string
	Err        error
}

func (e *PartialGraphUpdateError) Error() string {
	return fmt.Sprintf("%s %s -> %s applied to one side only: %v", e.Op, e.FollowerID, e.FolloweeID, e.Err)
}

func (e *PartialGraphUpdateError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPartialGraphUpdate) hold for every PartialGraphUpdateError.
func (e *PartialGraphUpdateError) Is(target error) bool { return target == ErrPartialGraphUpdate }
