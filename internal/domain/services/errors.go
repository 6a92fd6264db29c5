package services

import "errors"

// Domain-specific service errors
var (
	// ErrInvalidOperation is returned when a lifecycle transition is attempted
	// from a state that forbids it
	ErrInvalidOperation = errors.New("operation not valid in current state")

	// ErrBotNotRunning is returned when an operation needs the Discord
	// connection and it is not in the running state
	ErrBotNotRunning = errors.New("discord bot is not running")

	// ErrLinkCodeNotFound is returned when a code does not match any valid,
	// unconsumed link request. Absence and expiry are indistinguishable.
	ErrLinkCodeNotFound = errors.New("link code not found")

	// ErrNoFreeCodes is returned when the registry cannot roll an unused code
	ErrNoFreeCodes = errors.New("no free link codes available")
)
