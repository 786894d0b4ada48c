package toolset

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/impromptu/calendar"
	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/credential"
	"github.com/hupe1980/impromptu/internal/instrumentation"
	"github.com/hupe1980/impromptu/logging"
	"github.com/hupe1980/impromptu/tool"
)

// Tool names.
const (
	AskForDetailsName      = "askForDetails"
	AskTimeAndTimeZoneName = "askTimeAndTimeZone"
	MakeCalendarEntryName  = "makeGCalendarEntry"
)

// isoMillis renders instants like JavaScript's Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Options configures the toolset.
type Options struct {
	// Credentials supplies the provider access token. Required for makeGCalendarEntry.
	Credentials credential.Provider
	// Calendar receives normalized events. Required for makeGCalendarEntry.
	Calendar calendar.Provider
	// CalendarID defaults to "primary".
	CalendarID string
	// ServerTimeZone is the label reported when the client sent no valid zone.
	ServerTimeZone string
	// Clock defaults to the system clock.
	Clock      core.Clock
	Normalizer *calendar.Normalizer
	Metrics    *instrumentation.Metrics
	Logger     logging.Logger
}

// New builds the process-wide tool registry.
func New(optFns ...func(o *Options)) (*tool.Registry, error) {
	opts := Options{
		CalendarID:     calendar.DefaultCalendarID,
		ServerTimeZone: "UTC",
		Normalizer:     calendar.NewNormalizer(),
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Credentials == nil {
		return nil, errors.New("toolset: credential provider is required")
	}
	if opts.Calendar == nil {
		return nil, errors.New("toolset: calendar provider is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	askForDetails, err := NewAskForDetails()
	if err != nil {
		return nil, err
	}
	askTime, err := NewAskTimeAndTimeZone(opts.ServerTimeZone, opts.Clock)
	if err != nil {
		return nil, err
	}
	entry, err := NewMakeCalendarEntry(&opts)
	if err != nil {
		return nil, err
	}

	return tool.NewRegistry(entry, askTime, askForDetails)
}

// NewAskForDetails returns the identity tool that relays a question to the user.
func NewAskForDetails() (*tool.FunctionTool, error) {
	return tool.NewFunctionTool(
		AskForDetailsName,
		"Use to ask the user for required/important information they missed out on. Do not poke the user with unwanted requests.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "The questions you want the user to answer IN TEXT.",
				},
			},
			"required": []string{"question"},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			q, _ := args["question"].(string)
			return q, nil
		},
	)
}

// NewAskTimeAndTimeZone returns the clock tool. serverZone is the label used
// when the run carries no valid client zone.
func NewAskTimeAndTimeZone(serverZone string, clock core.Clock) (*tool.FunctionTool, error) {
	if serverZone == "" {
		serverZone = "UTC"
	}
	return tool.NewFunctionToolFromStruct(
		AskTimeAndTimeZoneName,
		"Returns the current time/date from the server (need not be in the same time zone as user) along with time zone of the user",
		struct{}{},
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			now := clock.Now()
			return CurrentTime(now, tc.RunInfo(), serverZone), nil
		},
	)
}

// CurrentTime renders the askTimeAndTimeZone result.
func CurrentTime(now time.Time, info core.RunInfo, serverZone string) string {
	loc, ok := info.Location()
	if !ok {
		return fmt.Sprintf("Current date: %s Time zone: %s\n", now.UTC().Format(isoMillis), serverZone)
	}
	return fmt.Sprintf("Current date: %s Time zone: %s\nLocal time: %s\n",
		now.UTC().Format(isoMillis), info.TimeZone, now.In(loc).Format(time.RFC3339))
}
