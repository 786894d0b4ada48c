package calendar

import (
	"context"

	gcal "google.golang.org/api/calendar/v3"
)

// DefaultCalendarID is the calendar events are written to when none is configured.
const DefaultCalendarID = "primary"

// CreatedEvent identifies an event accepted by a provider.
type CreatedEvent struct {
	ID       string
	HTMLLink string
}

// Provider submits normalized events to a calendar backend.
//
// Implementations must be safe for concurrent use. A rejection by the backend
// is reported as a *core.ProviderError.
type Provider interface {
	Name() string
	InsertEvent(ctx context.Context, accessToken, calendarID string, ev *gcal.Event) (*CreatedEvent, error)
}
