package borrow

import (
	"errors"
	"fmt"
)

// Error kinds. Every error the engine produces on purpose unwraps to one of these.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

const (
	reasonToolNotFound      = "tool not found"
	reasonBorrowerNotFound  = "borrower not found"
	reasonRequestNotFound   = "borrow request not found"
	reasonToolUnavailable   = "tool is not available"
	reasonOwnRequest        = "owner cannot request own tool"
	reasonDuplicatePending  = "you already have a pending request for this tool"
	reasonDueBeforeStart    = "due_date cannot be before start_date"
	reasonOnlyPending       = "only pending requests can be updated"
	reasonOnlyApproved      = "only approved requests can be returned"
	reasonToolBorrowed      = "cannot change availability while tool is borrowed"
	reasonDeleteBorrowed    = "cannot delete a tool while it is borrowed"
	reasonRequestChanged    = "borrow request was changed concurrently"
	reasonAvailabilityMoved = "tool availability was changed concurrently"
)

// Error is a rejection with a reason that is safe to show to the caller.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Kind }

func notFound(reason string) error { return &Error{Kind: ErrNotFound, Reason: reason} }

func conflict(reason string) error { return &Error{Kind: ErrConflict, Reason: reason} }

func invalid(reason string) error { return &Error{Kind: ErrValidation, Reason: reason} }

// missing turns a store-level not-found into a NotFound rejection with reason.
// Any other store failure passes through untouched.
func missing(err error, reason string) error {
	if errors.Is(err, ErrNotFound) {
		return notFound(reason)
	}
	return fmt.Errorf("store: %w", err)
}
