package core

import (
	"context"
	"time"
)

// RunInfo is per-run metadata carried on the context.
type RunInfo struct {
	RunID string
	// TimeZone is the IANA zone the client supplied, empty when absent.
	TimeZone string
}

type runInfoKey struct{}

// WithRunInfo attaches run metadata to ctx.
func WithRunInfo(ctx context.Context, info RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}

// RunInfoFrom returns the run metadata attached to ctx, or the zero value.
func RunInfoFrom(ctx context.Context) RunInfo {
	if ctx == nil {
		return RunInfo{}
	}
	info, _ := ctx.Value(runInfoKey{}).(RunInfo)
	return info
}

// Location resolves TimeZone. ok is false when the zone is empty or unknown.
func (ri RunInfo) Location() (loc *time.Location, ok bool) {
	if ri.TimeZone == "" {
		return nil, false
	}
	loc, err := time.LoadLocation(ri.TimeZone)
	if err != nil {
		return nil, false
	}
	return loc, true
}

// Clock returns the current time. A nil Clock reads the system clock.
type Clock func() time.Time

// Now returns the current time according to c.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
