// Package credential supplies access tokens for the calendar provider.
//
// A Provider is consulted once per makeGCalendarEntry call. Failures are
// reported as *core.AuthError and turned into a textual tool result by the
// caller; they never abort a conversation run.
package credential
