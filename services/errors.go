package services

import "errors"

var (
	// ErrSlotUnavailable covers both lock contention and a slot that is
	// already booked; the caller picks another slot.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrInsufficientFunds means the debit would drive the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTransition is returned for any illegal session state
	// change; the session is left untouched.
	ErrInvalidTransition = errors.New("invalid session transition")

	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid request")

	// ErrLedgerInconsistency means a cached balance disagrees with the
	// ledger it is derived from. This is a bug, never user error.
	ErrLedgerInconsistency = errors.New("ledger inconsistency")
)
