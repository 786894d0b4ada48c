package calendar

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/hupe1980/impromptu/tool"
)

// Defaults applied to absent fields.
const (
	DefaultEventType  = "default"
	DefaultStatus     = "confirmed"
	DefaultVisibility = "default"
)

const (
	dateLayout          = "2006-01-02"
	localDateTimeLayout = "2006-01-02T15:04:05"
)

var recurrenceNames = []string{"RRULE", "EXRULE", "RDATE", "EXDATE"}

// Branch names the start/end representation chosen for an event.
type Branch int

const (
	BranchTimed Branch = iota
	BranchAllDay
)

func (b Branch) String() string {
	if b == BranchAllDay {
		return "all-day"
	}
	return "timed"
}

// Normalizer converts an EventRequest into the provider payload. It holds no
// state and is safe for concurrent use; equal requests yield equal payloads.
type Normalizer struct{}

// NewNormalizer returns a Normalizer.
func NewNormalizer() *Normalizer { return &Normalizer{} }

// ResolveBranch decides between the timed and all-day representation:
//
//   - allDay=true selects all-day; timed fields are ignored.
//   - otherwise a complete timed pair selects timed.
//   - with allDay unset, no timed field and a complete date pair, all-day.
//
// Anything else is a *tool.ValidationError.
func ResolveBranch(r EventRequest) (Branch, error) {
	if r.AllDay != nil && *r.AllDay {
		if !r.hasDateStart() || !r.hasDateEnd() {
			return BranchAllDay, &tool.ValidationError{Field: missingField(r.hasDateStart(), "startDate", "endDate"), Message: "all-day events require both startDate and endDate"}
		}
		return BranchAllDay, nil
	}

	switch {
	case r.hasTimedStart() && r.hasTimedEnd():
		return BranchTimed, nil
	case r.hasTimedStart() || r.hasTimedEnd():
		return BranchTimed, &tool.ValidationError{Field: missingField(r.hasTimedStart(), "startDateTime", "endDateTime"), Message: "timed events require both startDateTime and endDateTime"}
	case r.AllDay == nil && r.hasDateStart() && r.hasDateEnd():
		return BranchAllDay, nil
	case r.AllDay == nil && (r.hasDateStart() || r.hasDateEnd()):
		return BranchAllDay, &tool.ValidationError{Field: missingField(r.hasDateStart(), "startDate", "endDate"), Message: "all-day events require both startDate and endDate"}
	default:
		return BranchTimed, &tool.ValidationError{Field: "startDateTime", Message: "either startDateTime/endDateTime or startDate/endDate is required"}
	}
}

func missingField(firstPresent bool, first, second string) string {
	if firstPresent {
		return second
	}
	return first
}

// Validate checks the semantic rules the JSON schema cannot express.
func (n *Normalizer) Validate(r EventRequest) (Branch, error) {
	if strings.TrimSpace(r.Summary) == "" {
		return BranchTimed, &tool.ValidationError{Field: "summary", Value: r.Summary, Message: "summary is required"}
	}

	branch, err := ResolveBranch(r)
	if err != nil {
		return branch, err
	}

	for _, z := range []struct{ field, zone string }{
		{"startTimeZone", r.StartTimeZone},
		{"endTimeZone", r.EndTimeZone},
	} {
		if z.zone == "" {
			continue
		}
		if _, err := time.LoadLocation(z.zone); err != nil {
			return branch, &tool.ValidationError{Field: z.field, Value: z.zone, Message: fmt.Sprintf("unknown time zone %q", z.zone)}
		}
	}

	if branch == BranchAllDay {
		start, err := time.Parse(dateLayout, r.StartDate)
		if err != nil {
			return branch, &tool.ValidationError{Field: "startDate", Value: r.StartDate, Message: "expected YYYY-MM-DD"}
		}
		end, err := time.Parse(dateLayout, r.EndDate)
		if err != nil {
			return branch, &tool.ValidationError{Field: "endDate", Value: r.EndDate, Message: "expected YYYY-MM-DD"}
		}
		if end.Before(start) {
			return branch, &tool.ValidationError{Field: "endDate", Value: r.EndDate, Message: "end is before start"}
		}
	} else {
		start, err := ParseDateTime(r.StartDateTime, r.StartTimeZone)
		if err != nil {
			return branch, &tool.ValidationError{Field: "startDateTime", Value: r.StartDateTime, Message: err.Error()}
		}
		endZone := r.EndTimeZone
		if endZone == "" {
			endZone = r.StartTimeZone
		}
		end, err := ParseDateTime(r.EndDateTime, endZone)
		if err != nil {
			return branch, &tool.ValidationError{Field: "endDateTime", Value: r.EndDateTime, Message: err.Error()}
		}
		if end.Before(start) {
			return branch, &tool.ValidationError{Field: "endDateTime", Value: r.EndDateTime, Message: "end is before start"}
		}
	}

	if err := validateRecurrence(r.RecurrenceRules); err != nil {
		return branch, err
	}

	for _, rem := range r.CustomReminders {
		if !slices.Contains(ReminderMethods, rem.Method) {
			return branch, &tool.ValidationError{Field: "customReminders.method", Value: rem.Method, Message: "must be email or popup"}
		}
		if rem.Minutes < 0 || rem.Minutes > MaxReminderMinutes {
			return branch, &tool.ValidationError{Field: "customReminders.minutes", Value: rem.Minutes, Message: fmt.Sprintf("must be between 0 and %d", MaxReminderMinutes)}
		}
	}

	for _, e := range []struct {
		field   string
		value   string
		allowed []string
	}{
		{"eventType", r.EventType, EventTypes},
		{"status", r.Status, Statuses},
		{"visibility", r.Visibility, Visibilities},
	} {
		if e.value != "" && !slices.Contains(e.allowed, e.value) {
			return branch, &tool.ValidationError{Field: e.field, Value: e.value, Message: fmt.Sprintf("must be one of %s", strings.Join(e.allowed, ", "))}
		}
	}

	return branch, nil
}

func validateRecurrence(rules []string) error {
	if len(rules) == 0 {
		return nil
	}
	for _, rule := range rules {
		name := strings.ToUpper(strings.TrimSpace(rule))
		if i := strings.IndexAny(name, ":;"); i > 0 {
			name = name[:i]
		}
		if !slices.Contains(recurrenceNames, name) {
			return &tool.ValidationError{Field: "recurrenceRules", Value: rule, Message: "each rule must start with RRULE:, EXRULE:, RDATE or EXDATE"}
		}
	}
	if _, err := rrule.StrSliceToRRuleSet(rules); err != nil {
		return &tool.ValidationError{Field: "recurrenceRules", Value: rules, Message: err.Error()}
	}
	return nil
}

// Normalize validates r and builds the provider payload.
//
// Copied verbatim: summary, description, location, recurrence rules and
// colorId. All-day end dates are exclusive; endDate == startDate yields a
// single-day event ending the next day. Defaults: reminders use the calendar default unless disabled or
// overridden, eventType "default", status "confirmed", visibility "default".
func (n *Normalizer) Normalize(r EventRequest) (*gcal.Event, error) {
	branch, err := n.Validate(r)
	if err != nil {
		return nil, err
	}

	ev := &gcal.Event{
		Summary:     r.Summary,
		Description: r.Description,
		Location:    r.Location,
		EventType:   valueOr(r.EventType, DefaultEventType),
		Status:      valueOr(r.Status, DefaultStatus),
		Visibility:  valueOr(r.Visibility, DefaultVisibility),
		ColorId:     r.ColorID,
	}

	if branch == BranchAllDay {
		ev.Start = &gcal.EventDateTime{Date: r.StartDate, TimeZone: r.StartTimeZone}
		ev.End = &gcal.EventDateTime{Date: exclusiveEndDate(r.StartDate, r.EndDate), TimeZone: r.EndTimeZone}
	} else {
		ev.Start = &gcal.EventDateTime{DateTime: r.StartDateTime, TimeZone: r.StartTimeZone}
		ev.End = &gcal.EventDateTime{DateTime: r.EndDateTime, TimeZone: r.EndTimeZone}
	}

	useDefault := true
	switch {
	case r.UseDefaultReminders != nil:
		useDefault = *r.UseDefaultReminders
	case len(r.CustomReminders) > 0:
		// The provider rejects overrides combined with default reminders.
		useDefault = false
	}
	reminders := &gcal.EventReminders{
		UseDefault:      useDefault,
		ForceSendFields: []string{"UseDefault"},
	}
	for _, rem := range r.CustomReminders {
		reminders.Overrides = append(reminders.Overrides, &gcal.EventReminder{
			Method:          rem.Method,
			Minutes:         rem.Minutes,
			ForceSendFields: []string{"Minutes"},
		})
	}
	ev.Reminders = reminders

	if len(r.RecurrenceRules) > 0 {
		ev.Recurrence = append([]string(nil), r.RecurrenceRules...)
	}

	for _, email := range r.Attendees {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: email})
	}

	return ev, nil
}

// exclusiveEndDate returns the provider's exclusive end date. An end equal to
// the start denotes a single-day event and becomes the following day. Both
// dates have been validated.
func exclusiveEndDate(start, end string) string {
	if end != start {
		return end
	}
	t, _ := time.Parse(dateLayout, start)
	return t.AddDate(0, 0, 1).Format(dateLayout)
}

// ParseDateTime parses an RFC3339 timestamp, or a local timestamp without
// offset interpreted in zone (UTC when zone is empty).
func ParseDateTime(value, zone string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	loc := time.UTC
	if zone != "" {
		l, err := time.LoadLocation(zone)
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown time zone %q", zone)
		}
		loc = l
	}
	t, err := time.ParseInLocation(localDateTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 date-time, got %q", value)
	}
	return t, nil
}

func hasOffset(value string) bool {
	_, err := time.Parse(time.RFC3339, value)
	return err == nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
