// Package calendar turns makeGCalendarEntry arguments into calendar events.
//
// An EventRequest is decoded from the tool arguments, checked by a Normalizer
// and converted into a Google Calendar v3 payload. The payload is submitted by
// a Provider: GoogleProvider talks to the Calendar API with a bearer token,
// ICSProvider writes iCalendar files for credential-free setups.
//
//	n := calendar.NewNormalizer()
//	ev, err := n.Normalize(req)
//	if err != nil {
//	    // *tool.ValidationError
//	}
//	created, err := calendar.NewGoogleProvider().InsertEvent(ctx, token, "primary", ev)
package calendar
