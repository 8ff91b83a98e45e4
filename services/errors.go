package services

import "fmt"

// The engine's failure taxonomy. Handlers map these onto HTTP statuses; every
// user-facing failure carries the specific reason because both the appeal flow
// and UI messaging branch on it.

// RejectionError: content blocked by the risk scorer. Permanent, not retryable.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return "dare rejected: " + e.Reason }

// ValidationError: proof failed a specific named check. Retryable by
// submitting different proof.
type ValidationError struct {
	Check  string // which check failed, e.g. "replay", "freshness"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("proof validation failed (%s): %s", e.Check, e.Reason)
}

// ConflictError: lost a race on a conditional state transition, or the
// requested transition is illegal from the current state. Retryable by
// re-reading and re-attempting.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

// AuthorizationError: operator-only action attempted without authority.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return "not authorized: " + e.Reason }

// NotFoundError: unknown dare/voter/appeal id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Entity, e.ID) }
