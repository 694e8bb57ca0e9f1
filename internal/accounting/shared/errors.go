package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var (
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrInvalidState indicates the action is not allowed in the current status.
	ErrInvalidState = errors.New("accounting: invalid status transition")
	// ErrNotFound indicates a missing account, entry, or financial year.
	ErrNotFound = errors.New("accounting: not found")
	// ErrConcurrencyConflict indicates a unique violation or lost update; retry the operation.
	ErrConcurrencyConflict = errors.New("accounting: concurrent modification")
	// ErrFinancialYearDisabled indicates financial year management is switched off.
	ErrFinancialYearDisabled = fmt.Errorf("%w: financial year management disabled", ErrInvalidState)
)

// ValidationError describes malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "accounting: " + e.Reason
	}
	return fmt.Sprintf("accounting: %s %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UnbalancedEntryError reports the debit and credit sums of a rejected entry.
type UnbalancedEntryError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("accounting: journal lines must balance (debit %s, credit %s)", e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

// Is matches ErrUnbalanced.
func (e *UnbalancedEntryError) Is(target error) bool { return target == ErrUnbalanced }

// InvalidStateError reports an illegal lifecycle transition.
type InvalidStateError struct {
	Entity string
	ID     int64
	Status string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("accounting: cannot %s %s %d in status %s", e.Action, e.Entity, e.ID, e.Status)
}

// Is matches ErrInvalidState.
func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// NotFoundError reports a missing record.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("accounting: %s %s not found", e.Entity, e.Key)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError keyed by any printable value.
func NotFound(entity string, key any) error {
	return &NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
}

// ConcurrencyConflictError wraps a store error that the caller should retry.
type ConcurrencyConflictError struct {
	Resource string
	Err      error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Err == nil {
		return "accounting: concurrent modification of " + e.Resource
	}
	return fmt.Sprintf("accounting: concurrent modification of %s: %v", e.Resource, e.Err)
}

// Is matches ErrConcurrencyConflict.
func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

// PostgreSQL error codes that signal a retryable conflict.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TranslatePgError maps unique violations, serialization failures, and
// deadlocks to ConcurrencyConflictError. Other errors pass through.
func TranslatePgError(resource string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return &ConcurrencyConflictError{Resource: resource, Err: err}
		}
	}
	return err
}

// IsUniqueViolation reports whether err is a unique violation on constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
