package models

import "errors"

var (
	// ErrInsufficientData means a series is too short for the requested indicator.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDataUnavailable means a price provider call failed or the symbol is unknown.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInvalidExecution marks a malformed execution row.
	ErrInvalidExecution = errors.New("invalid execution")
	// ErrOrderingViolation is returned when a batch is not sorted by timestamp.
	ErrOrderingViolation = errors.New("executions not in chronological order")
	// ErrInsufficientHoldings means a sell exceeded the open quantity.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)
