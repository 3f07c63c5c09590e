package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Credit errors
	ErrQuotaExhausted  = errors.New("no AI generation credits remaining")
	ErrProfileNotFound = errors.New("user profile not found")

	// Generation log errors
	ErrLogNotFound      = errors.New("generation log not found")
	ErrAlreadyFinalized = errors.New("generation log already finalized")

	// Feature errors
	ErrUnknownFeature = errors.New("unknown generation feature")
	ErrNotAuthorized  = errors.New("caller is not authorized for this action")
)

// ─── Invocation Errors ──────────────────────────────────────────────────────

// InvocationErrorKind classifies a failed remote generation call.
type InvocationErrorKind string

const (
	// InvocationTransport covers network failures and non-2xx responses.
	InvocationTransport InvocationErrorKind = "transport"
	// InvocationRemote covers functions that replied {success:false}.
	InvocationRemote InvocationErrorKind = "remote"
)

// InvocationError normalizes the three remote failure modes (network error,
// non-2xx status, success:false body) into one error path. Message carries
// the server-provided text when present.
type InvocationError struct {
	Kind     InvocationErrorKind
	Function string
	Message  string
	Err      error
}

func (e *InvocationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invoke %s: %s: %s", e.Function, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("invoke %s: %s: %v", e.Function, e.Kind, e.Err)
	}
	return fmt.Sprintf("invoke %s: %s", e.Function, e.Kind)
}

func (e *InvocationError) Unwrap() error { return e.Err }
