/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  Every failed operation returns one of these, synchronously. The ledger
  never retries and never partially applies an operation, so a failed
  call leaves state untouched and the ledger usable.

ERROR CATEGORIES:
  1. Authorization - caller lacks the Admin or Manager capability
  2. Registry - employee missing or already present
  3. Validation - bad month, bad working days, quota, time windows
  4. Settlement - future period, nothing accrued, already paid, fund short

USAGE:
    if errors.Is(err, payroll.ErrAlreadyClaimed) {
        // safe to treat as success for a retried claim
    }

SEE ALSO:
  - api/handlers.go: Maps categories to HTTP status codes
*/
package payroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("employee does not exist")
	ErrAlreadyExists = errors.New("employee already exists")

	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidWorkingDays = errors.New("invalid working days")
	ErrQuotaExceeded      = errors.New("exceed max change working days")

	ErrWeekendNotAllowed = errors.New("check in is not allowed on weekends")
	ErrCheckInWindow     = errors.New("outside check-in window")
	ErrCheckOutWindow    = errors.New("outside check-out window")
	ErrCheckInFirst      = errors.New("check in first")

	ErrFutureMonthClaim = errors.New("period has not elapsed yet")
	ErrNoWorkingDays    = errors.New("no working days")
	ErrAlreadyClaimed   = errors.New("salary already claimed")
	ErrInsufficientFund = errors.New("insufficient fund")
	ErrTransferRejected = errors.New("transfer rejected")

	ErrInvalidAmount      = errors.New("amount must be a non-negative integer")
	ErrInvalidIdentity    = errors.New("identity must not be empty")
	ErrInvalidConfig      = errors.New("invalid ledger configuration")
	ErrAlreadyInitialized = errors.New("ledger already initialized")
	ErrNotInitialized     = errors.New("ledger not initialized")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OpError records which operation failed and for whom.
type OpError struct {
	Op     string
	Caller Identity
	Err    error
}

func (e *OpError) Error() string {
	if e.Caller.IsZero() {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (caller %s): %v", e.Op, e.Caller, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// InsufficientFundError provides details about a fund shortage.
type InsufficientFundError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundError) Error() string {
	return fmt.Sprintf("insufficient fund: available %s, requested %s", e.Available, e.Requested)
}

func (e *InsufficientFundError) Unwrap() error { return ErrInsufficientFund }

// WindowError reports a check-in or check-out outside its window.
type WindowError struct {
	Window    string // "check-in" or "check-out"
	At        time.Time
	Target    time.Time
	Tolerance time.Duration
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("%s at %s outside %s ± %s",
		e.Window, e.At.Format(time.RFC3339), e.Target.Format("15:04:05"), e.Tolerance)
}

func (e *WindowError) Unwrap() error {
	if e.Window == windowCheckOut {
		return ErrCheckOutWindow
	}
	return ErrCheckInWindow
}

// QuotaError reports a manager override larger than the quota.
type QuotaError struct {
	Current   int
	Requested int
	Max       int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("exceed max change working days: %d -> %d moves more than %d",
		e.Current, e.Requested, e.Max)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsForbidden returns true if the caller lacked the required capability.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound returns true if the error indicates a missing employee.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the operation clashes with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrAlreadyInitialized)
}

// IsClientError returns true if the error is due to invalid input or a
// business rule the caller can satisfy by changing the request or waiting.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrInvalidMonth, ErrInvalidWorkingDays, ErrQuotaExceeded,
		ErrWeekendNotAllowed, ErrCheckInWindow, ErrCheckOutWindow, ErrCheckInFirst,
		ErrFutureMonthClaim, ErrNoWorkingDays, ErrInsufficientFund,
		ErrInvalidAmount, ErrInvalidIdentity,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func opErr(op string, caller Identity, err error) error {
	return &OpError{Op: op, Caller: caller, Err: err}
}
