package service

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy.  Handlers map these to status codes with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("seat conflict")
	ErrInvalidState      = errors.New("reservation is not pending")
	ErrExpired           = errors.New("reservation expired")
	ErrForbidden         = errors.New("reservation belongs to another user")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInconsistency     = errors.New("internal inconsistency")
	ErrValidation        = errors.New("validation failed")
)

// ConflictError names the seats that could not be taken.  Cause, when
// set, records the failed post-condition that led to the conflict.
type ConflictError struct {
	Seats []string
	Cause error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.Seats, ","))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Cause }

// InsufficientFundsError carries the amounts needed to retry.
type InsufficientFundsError struct {
	RequiredCents  int64
	AvailableCents int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %d, available %d", e.RequiredCents, e.AvailableCents)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// InconsistencyError reports a conditional write that matched fewer rows
// than expected.  It is always compensated and logged before surfacing.
type InconsistencyError struct {
	Op       string
	Expected int64
	Actual   int64
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%s: expected %d rows, matched %d", e.Op, e.Expected, e.Actual)
}

func (e *InconsistencyError) Is(target error) bool { return target == ErrInconsistency }

func validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
