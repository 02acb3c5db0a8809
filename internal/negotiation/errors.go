package negotiation

import "errors"

var (
	// ErrValidation rejects malformed input: non-positive prices, missing contact
	// fields, unknown senders.
	ErrValidation = errors.New("invalid negotiation input")

	// ErrNotFound means the negotiation id resolves to nothing.
	ErrNotFound = errors.New("negotiation not found")

	// ErrInvalidTransition means a mutation was attempted on a negotiation that is
	// already in a terminal state. Terminal states are immutable.
	ErrInvalidTransition = errors.New("negotiation is no longer pending")

	// ErrConflict means a concurrent writer got there first; the caller should
	// re-fetch and reconcile.
	ErrConflict = errors.New("negotiation was modified concurrently")
)
