package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMaxTurnsExceeded is returned when a run exceeds its planner turn budget.
	ErrMaxTurnsExceeded = errors.New("maximum planner turns exceeded")
	// ErrToolTimeout is returned when a tool call exceeds its deadline.
	ErrToolTimeout = errors.New("tool call timed out")
)

// AuthError reports that no usable access credential is available.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProviderError is a calendar provider rejection with an optional reason code.
type ProviderError struct {
	Provider string
	Code     int
	Message  string
	Reason   string
}

func (e *ProviderError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Reason)
	}
	return e.Message
}

// PlannerError wraps a failed model invocation. It is fatal to the run.
type PlannerError struct {
	Model string
	Err   error
}

func (e *PlannerError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("planner %s failed: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("planner failed: %v", e.Err)
}

func (e *PlannerError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed tool call or tool result correlation.
type ProtocolError struct {
	CallID  string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("protocol error (call %s): %s", e.CallID, e.Message)
	}
	return "protocol error: " + e.Message
}

// IsProtocolError reports whether err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
