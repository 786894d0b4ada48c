package calendar

// Allowed enumerations of the event request.
var (
	ReminderMethods = []string{"email", "popup"}
	EventTypes      = []string{"default", "birthday", "focusTime", "outOfOffice", "workingLocation"}
	Statuses        = []string{"confirmed", "tentative", "cancelled"}
	Visibilities    = []string{"default", "public", "private", "confidential"}
)

// MaxReminderMinutes is the largest reminder offset the provider accepts (four weeks).
const MaxReminderMinutes = 40320

const (
	datePattern    = `^\d{4}-\d{2}-\d{2}$`
	colorIDPattern = `^([1-9]|1[01])$`
	emailPattern   = `^[^@\s]+@[^@\s]+$`
)

// Schema returns the JSON schema of makeGCalendarEntry's arguments.
func Schema() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	enum := func(desc string, values []string) map[string]any {
		return map[string]any{"type": "string", "enum": values, "description": desc}
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string", "minLength": 1, "description": "Title of the event (required)"},

			"startDateTime": str("Start date and time in RFC3339 format (e.g. '2024-01-15T10:00:00-08:00' or '2024-01-15T10:00:00' with startTimeZone). Use this for timed events."),
			"startDate":     map[string]any{"type": "string", "pattern": datePattern, "description": "Start date in YYYY-MM-DD format for all-day events"},
			"startTimeZone": str("IANA time zone for the start time (e.g. 'America/New_York')"),

			"endDateTime": str("End date and time in RFC3339 format (e.g. '2024-01-15T11:00:00-08:00'). Use this for timed events."),
			"endDate":     map[string]any{"type": "string", "pattern": datePattern, "description": "End date in YYYY-MM-DD format for all-day events"},
			"endTimeZone": str("IANA time zone for the end time (e.g. 'America/New_York')"),

			"description": str("Description of the event. Can contain HTML."),
			"location":    str("Geographic location of the event as free-form text"),
			"attendees": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string", "pattern": emailPattern},
				"description": "Email addresses of attendees",
			},

			"allDay": map[string]any{"type": "boolean", "description": "Whether this is an all-day event (if true, use startDate/endDate instead of startDateTime/endDateTime)"},

			"useDefaultReminders": map[string]any{"type": "boolean", "description": "Whether to use the calendar's default reminders (default: true)"},
			"customReminders": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"method":  enum("Reminder method", ReminderMethods),
						"minutes": map[string]any{"type": "integer", "minimum": 0, "maximum": MaxReminderMinutes, "description": "Minutes before event to trigger reminder (0-40320)"},
					},
					"required": []string{"method", "minutes"},
				},
				"description": "Custom reminders if not using defaults",
			},

			"recurrenceRules": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "RRULE strings for recurring events (RFC5545 format, e.g. 'RRULE:FREQ=WEEKLY;BYDAY=MO')",
			},

			"eventType":  enum("Specific type of event (default: 'default')", EventTypes),
			"status":     enum("Event status (default: 'confirmed')", Statuses),
			"visibility": enum("Event visibility (default: 'default')", Visibilities),
			"colorId":    map[string]any{"type": "string", "pattern": colorIDPattern, "description": "Color ID for the event (1-11)"},
		},
		"required": []string{"summary"},
	}
}
