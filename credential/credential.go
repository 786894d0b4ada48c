package credential

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/logging"
)

// CalendarScope grants read/write access to the user's calendars.
const CalendarScope = "https://www.googleapis.com/auth/calendar"

// ErrNoCredential is wrapped by the AuthError returned when no token is configured.
var ErrNoCredential = errors.New("no access token configured")

// Provider returns a fresh access token. Implementations must be safe for
// concurrent use.
type Provider interface {
	AccessToken(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, error)

// AccessToken implements Provider.
func (f ProviderFunc) AccessToken(ctx context.Context) (string, error) { return f(ctx) }

// StaticProvider hands out a fixed token. An empty token yields an AuthError.
type StaticProvider struct {
	Token string
}

// NewStaticProvider creates a StaticProvider.
func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{Token: token}
}

// AccessToken implements Provider.
func (p *StaticProvider) AccessToken(_ context.Context) (string, error) {
	if p == nil || p.Token == "" {
		return "", &core.AuthError{Message: "user is not authenticated", Err: ErrNoCredential}
	}
	return p.Token, nil
}

// OAuthOptions configures an OAuthProvider.
type OAuthOptions struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scopes       []string
	// Endpoint defaults to Google's OAuth2 endpoint.
	Endpoint oauth2.Endpoint
	Logger   logging.Logger
}

// OAuthProvider exchanges a long-lived refresh token for access tokens and
// caches them until shortly before expiry.
type OAuthProvider struct {
	opts OAuthOptions

	mu sync.Mutex
	ts oauth2.TokenSource
}

// NewOAuthProvider creates an OAuthProvider.
func NewOAuthProvider(optFns ...func(o *OAuthOptions)) *OAuthProvider {
	opts := OAuthOptions{
		Scopes:   []string{CalendarScope},
		Endpoint: google.Endpoint,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &OAuthProvider{opts: opts}
}

// AccessToken implements Provider.
func (p *OAuthProvider) AccessToken(ctx context.Context) (string, error) {
	if p.opts.RefreshToken == "" {
		return "", &core.AuthError{Message: "user is not authenticated", Err: ErrNoCredential}
	}

	tok, err := p.tokenSource(ctx).Token()
	if err != nil {
		p.opts.Logger.Warn("credential.refresh.failed", logging.KeyError, err.Error())
		return "", &core.AuthError{Message: "failed to refresh access token", Err: err}
	}

	p.opts.Logger.Debug("credential.refresh.ok",
		"token", logging.SanitizeToken(tok.AccessToken),
		"expiry", tok.Expiry)

	return tok.AccessToken, nil
}

// tokenSource lazily builds the cached token source. The context of the
// first call supplies the HTTP client used for all refreshes.
func (p *OAuthProvider) tokenSource(ctx context.Context) oauth2.TokenSource {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ts == nil {
		conf := &oauth2.Config{
			ClientID:     p.opts.ClientID,
			ClientSecret: p.opts.ClientSecret,
			Endpoint:     p.opts.Endpoint,
			Scopes:       p.opts.Scopes,
		}
		base := conf.TokenSource(context.WithoutCancel(ctx), &oauth2.Token{RefreshToken: p.opts.RefreshToken})
		p.ts = oauth2.ReuseTokenSource(nil, base)
	}
	return p.ts
}
