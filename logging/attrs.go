package logging

import "fmt"

// Common attribute keys so log lines stay greppable across packages.
const (
	KeyRunID      = "run_id"
	KeyTool       = "tool"
	KeyCallID     = "fc_id"
	KeyState      = "state"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyProvider   = "provider"
)

// SanitizeToken returns a masked version of a token for logging. Only the
// length is reported; no prefix of the secret ever reaches the log sink.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ErrString returns err.Error() or "" for a nil error.
func ErrString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
