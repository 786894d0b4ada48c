package calendar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/logging"
)

// ICSOptions configures an ICSProvider.
type ICSOptions struct {
	// Dir receives one <uid>.ics file per created event.
	Dir    string
	Clock  core.Clock
	Logger logging.Logger
}

// ICSProvider writes events as iCalendar files. It needs no credentials and
// ignores the access token.
type ICSProvider struct {
	opts ICSOptions
}

// NewICSProvider creates an ICSProvider writing into dir.
func NewICSProvider(dir string, optFns ...func(o *ICSOptions)) *ICSProvider {
	opts := ICSOptions{Dir: dir, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &ICSProvider{opts: opts}
}

// Name implements Provider.
func (p *ICSProvider) Name() string { return "ics" }

// InsertEvent implements Provider.
func (p *ICSProvider) InsertEvent(ctx context.Context, _ string, calendarID string, ev *gcal.Event) (*CreatedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	uid := core.NewID()
	cal, err := p.build(uid, calendarID, ev)
	if err != nil {
		return nil, &core.ProviderError{Provider: p.Name(), Message: err.Error(), Reason: "invalid"}
	}

	if err := os.MkdirAll(p.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create calendar dir: %w", err)
	}
	path := p.path(uid)
	if err := os.WriteFile(path, []byte(cal.Serialize()), 0o644); err != nil {
		return nil, fmt.Errorf("write event %s: %w", uid, err)
	}

	p.opts.Logger.Debug("calendar.ics.written", "uid", uid, "path", path)

	return &CreatedEvent{ID: uid, HTMLLink: "file://" + path}, nil
}

// Load parses a previously written event file.
func (p *ICSProvider) Load(uid string) (*ics.Calendar, error) {
	f, err := os.Open(p.path(uid))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ics.ParseCalendar(f)
}

func (p *ICSProvider) path(uid string) string {
	return filepath.Join(p.opts.Dir, uid+".ics")
}

func (p *ICSProvider) build(uid, calendarID string, ev *gcal.Event) (*ics.Calendar, error) {
	if ev.Start == nil || ev.End == nil {
		return nil, fmt.Errorf("event has no start or end")
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//impromptu//calendar agent//EN")
	if calendarID != "" {
		cal.SetXWRCalName(calendarID)
	}

	vev := cal.AddEvent(uid)
	vev.SetDtStampTime(p.opts.Clock.Now())
	vev.SetSummary(ev.Summary)
	if ev.Description != "" {
		vev.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		vev.SetLocation(ev.Location)
	}

	if ev.Start.Date != "" {
		start, err := time.Parse(dateLayout, ev.Start.Date)
		if err != nil {
			return nil, err
		}
		end, err := time.Parse(dateLayout, ev.End.Date)
		if err != nil {
			return nil, err
		}
		vev.SetAllDayStartAt(start)
		vev.SetAllDayEndAt(end)
	} else {
		start, err := ParseDateTime(ev.Start.DateTime, ev.Start.TimeZone)
		if err != nil {
			return nil, err
		}
		endZone := ev.End.TimeZone
		if endZone == "" {
			endZone = ev.Start.TimeZone
		}
		end, err := ParseDateTime(ev.End.DateTime, endZone)
		if err != nil {
			return nil, err
		}
		vev.SetStartAt(start)
		vev.SetEndAt(end)
	}

	switch ev.Status {
	case "tentative":
		vev.SetStatus(ics.ObjectStatusTentative)
	case "cancelled":
		vev.SetStatus(ics.ObjectStatusCancelled)
	default:
		vev.SetStatus(ics.ObjectStatusConfirmed)
	}

	switch ev.Visibility {
	case "public":
		vev.SetClass(ics.ClassificationPublic)
	case "private":
		vev.SetClass(ics.ClassificationPrivate)
	case "confidential":
		vev.SetClass(ics.ClassificationConfidential)
	}

	if ev.ColorId != "" {
		vev.SetColor(ev.ColorId)
	}

	for _, a := range ev.Attendees {
		vev.AddAttendee(a.Email)
	}

	for _, rule := range ev.Recurrence {
		name, value, ok := strings.Cut(rule, ":")
		if !ok {
			return nil, fmt.Errorf("malformed recurrence rule %q", rule)
		}
		name, _, _ = strings.Cut(strings.ToUpper(name), ";")
		switch name {
		case "RRULE":
			vev.AddRrule(value)
		case "EXRULE":
			vev.AddExrule(value)
		case "RDATE":
			vev.AddRdate(value)
		case "EXDATE":
			vev.AddExdate(value)
		}
	}

	if ev.Reminders != nil {
		for _, r := range ev.Reminders.Overrides {
			alarm := vev.AddAlarm()
			if r.Method == "email" {
				alarm.SetAction(ics.ActionEmail)
			} else {
				alarm.SetAction(ics.ActionDisplay)
			}
			alarm.SetTrigger(fmt.Sprintf("-PT%dM", r.Minutes))
		}
	}

	return cal, nil
}
