package credits

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/limits"
	"github.com/xraph/credits/types"
)

// Common errors returned by Credits operations.
var (
	// ErrNotFound is returned when an entity doesn't exist.
	ErrNotFound = errors.New("credits: not found")

	// ErrWorkspaceNotFound is returned when a workspace doesn't exist.
	ErrWorkspaceNotFound = errors.New("credits: workspace not found")

	// ErrAgentNotFound is returned when an agent doesn't exist.
	ErrAgentNotFound = errors.New("credits: agent not found")

	// ErrReservationNotFound is returned when a reservation doesn't exist.
	// During reconciliation and refund this is a benign idempotency signal,
	// not a failure: the reservation was already settled or expired.
	ErrReservationNotFound = errors.New("credits: reservation not found")

	// ErrAlreadyExists is returned when creating an entity that already exists.
	ErrAlreadyExists = errors.New("credits: already exists")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("credits: invalid input")

	// ErrVersionConflict is returned by the store when a compare-and-swap
	// balance write loses a race. The engine retries these internally; callers
	// only ever see it wrapped in a CreditDeductionError after retries are
	// exhausted.
	ErrVersionConflict = errors.New("credits: version conflict")

	// ErrInsufficientCredits is returned when a workspace balance cannot
	// cover a requested reservation. Never retried: the outcome would not
	// change.
	ErrInsufficientCredits = errors.New("credits: insufficient credits")

	// ErrSpendingLimitExceeded is returned when admission is denied because
	// one or more spending limits would be breached.
	ErrSpendingLimitExceeded = errors.New("credits: spending limit exceeded")

	// ErrCreditDeduction is returned when a balance update failed after
	// exhausting retries.
	ErrCreditDeduction = errors.New("credits: credit deduction failed")

	// ErrNoBuffer is returned when a metered operation runs outside a unit
	// of work: no transaction buffer is present on the context.
	ErrNoBuffer = errors.New("credits: no transaction buffer in context")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("credits: store is closed")
)

// InsufficientCreditsError carries the shortfall detail alongside
// ErrInsufficientCredits.
type InsufficientCreditsError struct {
	WorkspaceID id.WorkspaceID
	Required    types.Money
	Available   types.Money
}

// Error implements the error interface.
func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("credits: insufficient credits for workspace %s: required %s, available %s",
		e.WorkspaceID, e.Required, e.Available)
}

// Unwrap returns ErrInsufficientCredits so errors.Is works.
func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }

// SpendingLimitExceededError carries the complete list of breached limits
// alongside ErrSpendingLimitExceeded.
type SpendingLimitExceededError struct {
	WorkspaceID id.WorkspaceID
	Violations  []limits.Violation
}

// Error implements the error interface.
func (e *SpendingLimitExceededError) Error() string {
	var parts []string
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s %s limit %s (current %s, candidate %s)",
			v.Limit.Scope, v.Limit.TimeFrame, v.Limit.Limit, v.Current, v.Candidate))
	}
	return fmt.Sprintf("credits: spending limit exceeded for workspace %s: %s",
		e.WorkspaceID, strings.Join(parts, "; "))
}

// Unwrap returns ErrSpendingLimitExceeded so errors.Is works.
func (e *SpendingLimitExceededError) Unwrap() error { return ErrSpendingLimitExceeded }

// CreditDeductionError is returned when a balance update could not be
// applied after exhausting the retry budget.
type CreditDeductionError struct {
	WorkspaceID id.WorkspaceID
	Attempts    int
	Err         error
}

// Error implements the error interface.
func (e *CreditDeductionError) Error() string {
	return fmt.Sprintf("credits: deduction failed for workspace %s after %d attempts: %v",
		e.WorkspaceID, e.Attempts, e.Err)
}

// Unwrap returns ErrCreditDeduction so errors.Is works.
func (e *CreditDeductionError) Unwrap() error { return ErrCreditDeduction }

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrWorkspaceNotFound) ||
		errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrReservationNotFound)
}

// IsInsufficientCredits returns true if the error indicates a balance
// shortfall.
func IsInsufficientCredits(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}

// IsLimitExceeded returns true if the error indicates a spending-limit
// denial.
func IsLimitExceeded(err error) bool {
	return errors.Is(err, ErrSpendingLimitExceeded)
}

// IsConflict returns true if the error is a version conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsRetryable returns true for transient errors where retrying may succeed.
// Business failures (insufficient credits, limit denials, invalid input)
// are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
