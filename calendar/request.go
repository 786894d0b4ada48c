package calendar

import (
	"encoding/json"
	"fmt"
)

// Reminder is a custom reminder override.
type Reminder struct {
	Method  string `json:"method"`
	Minutes int64  `json:"minutes"`
}

// EventRequest is the provider-agnostic description of an event as requested
// by the planner through makeGCalendarEntry.
type EventRequest struct {
	Summary string `json:"summary"`

	StartDateTime string `json:"startDateTime,omitempty"`
	StartDate     string `json:"startDate,omitempty"`
	StartTimeZone string `json:"startTimeZone,omitempty"`

	EndDateTime string `json:"endDateTime,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	EndTimeZone string `json:"endTimeZone,omitempty"`

	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`

	AllDay *bool `json:"allDay,omitempty"`

	UseDefaultReminders *bool      `json:"useDefaultReminders,omitempty"`
	CustomReminders     []Reminder `json:"customReminders,omitempty"`

	RecurrenceRules []string `json:"recurrenceRules,omitempty"`

	EventType  string `json:"eventType,omitempty"`
	Status     string `json:"status,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	ColorID    string `json:"colorId,omitempty"`
}

// DecodeRequest converts validated tool arguments into an EventRequest.
func DecodeRequest(args map[string]any) (EventRequest, error) {
	var req EventRequest
	raw, err := json.Marshal(args)
	if err != nil {
		return req, fmt.Errorf("encode event arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decode event arguments: %w", err)
	}
	return req, nil
}

// hasTimedStart etc. report which halves of the two pairs are populated.
func (r EventRequest) hasTimedStart() bool { return r.StartDateTime != "" }
func (r EventRequest) hasTimedEnd() bool   { return r.EndDateTime != "" }
func (r EventRequest) hasDateStart() bool  { return r.StartDate != "" }
func (r EventRequest) hasDateEnd() bool    { return r.EndDate != "" }

// WithDefaultTimeZone fills empty time zones on timed values that carry no
// UTC offset. Values with an explicit offset are left untouched.
func (r EventRequest) WithDefaultTimeZone(zone string) EventRequest {
	if zone == "" {
		return r
	}
	if r.StartDateTime != "" && r.StartTimeZone == "" && !hasOffset(r.StartDateTime) {
		r.StartTimeZone = zone
	}
	if r.EndDateTime != "" && r.EndTimeZone == "" && !hasOffset(r.EndDateTime) {
		r.EndTimeZone = zone
	}
	return r
}
