package service

import (
	"errors"
	"fmt"
)

// ─────────────────────────────────────────────
// Errors
//
// Ledger failures are reported with the balance
// package's types (InsufficientCreditsError,
// ErrAccountNotActive); slip provider failures
// with the slip package's. The handler maps all
// of them to HTTP statuses.
// ─────────────────────────────────────────────

var (
	ErrValidation       = errors.New("invalid request")
	ErrJobNotFound      = errors.New("job not found")
	ErrAntiCheat        = errors.New("reported counts exceed the reserved file count")
	ErrInvalidCounts    = errors.New("reported counts must not be negative")
	ErrInvalidJobState  = errors.New("job is already settled by expiry")
	ErrReceiverMismatch = errors.New("slip receiver does not match our account")
	ErrDuplicateSlip    = errors.New("slip has already been used")

	// errLostRace signals that a guarded job transition matched no row.
	errLostRace = errors.New("job transition lost to a concurrent settlement")
)

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
