package store

import "errors"

var (
	// ErrInvalidTransition is returned when an instance is not in a status
	// from which the requested transition is allowed.
	ErrInvalidTransition = errors.New("invalid instance transition")

	// ErrInvalidAmount is returned when a ledger adjustment's amount has the
	// wrong sign for its transaction type, or is zero.
	ErrInvalidAmount = errors.New("invalid transaction amount")

	// ErrInsufficientBalance is returned when a deduction would take a
	// member's balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
