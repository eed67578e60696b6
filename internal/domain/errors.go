package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error taxonomy shared by every layer. Failures wrap one of these with
// fmt.Errorf("%w: ...") so callers can branch with errors.Is.
var (
	// ErrValidation marks malformed or out-of-range input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing pool record or member.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds marks a withdrawal above the member's redeemable value.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConflict marks a mutation that exhausted its compare-and-swap attempts.
	ErrConflict = errors.New("conflict")

	// ErrUpstream marks a Store or Oracle that stayed unavailable after retries.
	ErrUpstream = errors.New("upstream unavailable")

	// ErrInvalidState marks a pool record that cannot be transitioned safely
	// (corrupted values, broken invariants).
	ErrInvalidState = errors.New("invalid pool state")

	// ErrVersionConflict is returned by a PoolStore when the expected version
	// no longer matches the stored one.
	ErrVersionConflict = errors.New("version conflict")
)

// InsufficientFundsError carries the amounts involved in a rejected withdrawal
type InsufficientFundsError struct {
	MemberID  string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: member %s requested %s but only %s is redeemable",
		e.MemberID, e.Requested.String(), e.Available.String())
}

// Is reports whether target is ErrInsufficientFunds
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Validationf builds an ErrValidation-wrapped error
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound-wrapped error
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidStatef builds an ErrInvalidState-wrapped error
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// IsPermanent reports whether err must be surfaced to the caller as-is rather
// than retried. Business-rule failures, version conflicts (handled by the CAS
// loop) and context cancellation are permanent; anything else coming back
// from a Store or Oracle is treated as transient.
func IsPermanent(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrVersionConflict),
		errors.Is(err, ErrConflict),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
