package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/logging"
)

// GoogleOptions configures a GoogleProvider.
type GoogleOptions struct {
	// Endpoint overrides the Calendar API base URL (tests, proxies).
	Endpoint string
	// HTTPClient is the base transport wrapped with the bearer token.
	HTTPClient *http.Client
	Logger     logging.Logger
}

// GoogleProvider writes events through the Google Calendar v3 API.
type GoogleProvider struct {
	opts GoogleOptions
}

// NewGoogleProvider creates a GoogleProvider.
func NewGoogleProvider(optFns ...func(o *GoogleOptions)) *GoogleProvider {
	opts := GoogleOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &GoogleProvider{opts: opts}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// InsertEvent implements Provider. A fresh service is built per call since the
// access token is per request.
func (p *GoogleProvider) InsertEvent(ctx context.Context, accessToken, calendarID string, ev *gcal.Event) (*CreatedEvent, error) {
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}

	svc, err := p.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	p.opts.Logger.Debug("calendar.insert.start",
		logging.KeyProvider, p.Name(),
		"calendar_id", calendarID,
		"token", logging.SanitizeToken(accessToken))

	created, err := svc.Events.Insert(calendarID, ev).Context(ctx).Do()
	if err != nil {
		return nil, providerError(err)
	}

	return &CreatedEvent{ID: created.Id, HTMLLink: created.HtmlLink}, nil
}

func (p *GoogleProvider) service(ctx context.Context, accessToken string) (*gcal.Service, error) {
	if p.opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.opts.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.opts.Endpoint))
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}

// providerError converts a googleapi error into a *core.ProviderError. Other
// errors (transport, cancellation) are returned wrapped.
func providerError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("calendar insert: %w", err)
	}

	pe := &core.ProviderError{
		Provider: "google",
		Code:     apiErr.Code,
		Message:  apiErr.Message,
	}
	if len(apiErr.Errors) > 0 {
		pe.Reason = apiErr.Errors[0].Reason
		if pe.Message == "" {
			pe.Message = apiErr.Errors[0].Message
		}
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(apiErr.Code)
	}
	return pe
}
