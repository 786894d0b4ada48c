package toolset

import (
	"errors"
	"fmt"

	"github.com/hupe1980/impromptu/calendar"
	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/instrumentation"
	"github.com/hupe1980/impromptu/logging"
	"github.com/hupe1980/impromptu/tool"
)

// NewMakeCalendarEntry returns the tool that creates a calendar event.
//
// The request is normalized before any token is fetched, so invalid input
// never reaches the credential or calendar provider. Credential and provider
// failures come back as a failure sentence rather than an error.
func NewMakeCalendarEntry(opts *Options) (*tool.FunctionTool, error) {
	if opts.Normalizer == nil {
		opts.Normalizer = calendar.NewNormalizer()
	}
	return tool.NewFunctionTool(
		MakeCalendarEntryName,
		"Creates a new event in Google Calendar with the specified details in strict schema",
		calendar.Schema(),
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return makeEntry(tc, opts, args)
		},
	)
}

func makeEntry(tc *core.ToolContext, opts *Options, args map[string]any) (any, error) {
	req, err := calendar.DecodeRequest(args)
	if err != nil {
		return nil, &tool.ValidationError{Message: err.Error()}
	}
	req = req.WithDefaultTimeZone(tc.RunInfo().TimeZone)

	ev, err := opts.Normalizer.Normalize(req)
	if err != nil {
		return nil, err
	}

	ctx := tc.Context()
	token, err := opts.Credentials.AccessToken(ctx)
	if err != nil {
		tc.LogWarn("calendar.credential.failed", logging.KeyError, err.Error())
		return failure(req.Summary, err), nil
	}

	created, err := opts.Calendar.InsertEvent(ctx, token, opts.CalendarID, ev)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		opts.Metrics.RecordCalendarOperation(ctx, opts.Calendar.Name(), instrumentation.StatusError)
		tc.LogWarn("calendar.insert.failed", logging.KeyProvider, opts.Calendar.Name(), logging.KeyError, err.Error())
		return failure(req.Summary, err), nil
	}

	opts.Metrics.RecordCalendarOperation(ctx, opts.Calendar.Name(), instrumentation.StatusSuccess)
	tc.LogInfo("calendar.insert.ok", logging.KeyProvider, opts.Calendar.Name(), "event_id", created.ID)

	return fmt.Sprintf("Successfully created event: '%s'. Event ID: %s", req.Summary, created.ID), nil
}

func failure(summary string, err error) string {
	return fmt.Sprintf("Failed to create event '%s'. Error: %s", summary, describe(err))
}

// describe renders provider rejections the way the calendar API reports them.
func describe(err error) string {
	var pe *core.ProviderError
	if errors.As(err, &pe) && pe.Provider == "google" {
		return "Google Calendar API Error: " + pe.Error()
	}
	return err.Error()
}
