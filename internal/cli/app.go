package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/impromptu"
	"github.com/hupe1980/impromptu/agent"
	"github.com/hupe1980/impromptu/calendar"
	"github.com/hupe1980/impromptu/credential"
	"github.com/hupe1980/impromptu/engine"
	"github.com/hupe1980/impromptu/internal/config"
	"github.com/hupe1980/impromptu/internal/instrumentation"
	"github.com/hupe1980/impromptu/logging"
	"github.com/hupe1980/impromptu/model"
	"github.com/hupe1980/impromptu/model/anthropic"
	"github.com/hupe1980/impromptu/model/openai"
)

// App is the wired service.
type App struct {
	Config          *config.Config
	Logger          logging.Logger
	Assistant       *impromptu.Impromptu
	Instrumentation *instrumentation.Provider
}

// Shutdown flushes metrics.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Instrumentation.Shutdown(ctx)
}

// newLogger builds the process logger from cfg, writing to w.
func newLogger(cfg config.LoggingConfig, w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{Level: level, Format: cfg.Format, Output: w}), nil
}

// buildApp wires every component from cfg. llm overrides the configured
// model when not nil.
func buildApp(ctx context.Context, cfg *config.Config, llm model.Model, logOut io.Writer) (*App, error) {
	logger, err := newLogger(cfg.Logging, logOut)
	if err != nil {
		return nil, err
	}

	inst, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		Enabled:        cfg.Server.Metrics,
		ServiceVersion: version,
	})
	if err != nil {
		return nil, err
	}
	metrics := inst.Metrics()

	if llm == nil {
		if llm, err = newModel(cfg.Model); err != nil {
			return nil, err
		}
	}

	calProvider, err := newCalendar(cfg.Calendar, logger)
	if err != nil {
		return nil, err
	}

	instruction := agent.NewInstructionFromText(agent.DefaultPolicy)
	if cfg.Agent.InstructionFile != "" {
		text, err := os.ReadFile(cfg.Agent.InstructionFile)
		if err != nil {
			return nil, fmt.Errorf("read instruction file: %w", err)
		}
		instruction = agent.NewInstructionFromTemplate(string(text))
	}

	assistant, err := impromptu.New(llm, func(o *impromptu.Options) {
		o.Credentials = newCredentials(cfg, logger)
		o.Calendar = calProvider
		o.CalendarID = cfg.Calendar.CalendarID
		o.ServerTimeZone = cfg.Agent.ServerTimeZone
		o.Agent = append(o.Agent, func(o *agent.Options) {
			o.Instruction = instruction
			o.MaxTurns = cfg.Agent.MaxTurns
			o.ModelTimeout = cfg.Agent.ModelTimeout
			o.ToolTimeout = cfg.Agent.ToolTimeout
			o.MaxParallelTools = cfg.Agent.MaxParallelTools
			o.EnforceToolOrder = *cfg.Agent.EnforceToolOrder
		})
		o.EngineConfig.MaxConcurrentRuns = cfg.Engine.MaxConcurrentRuns
		if cfg.Engine.MaxInputBytes > 0 {
			o.Callbacks = append(o.Callbacks, engine.NewInputLimitCallback(cfg.Engine.MaxInputBytes))
		}
		o.Logger = logger
		o.Metrics = metrics
	})
	if err != nil {
		return nil, err
	}

	return &App{Config: cfg, Logger: logger, Assistant: assistant, Instrumentation: inst}, nil
}

func newModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, errors.New("anthropic: api key is required (ANTHROPIC_API_KEY)")
		}
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.MaxRetries = cfg.MaxRetries
		}), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("openai: api key is required (OPENAI_API_KEY)")
		}
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.MaxRetries = cfg.MaxRetries
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

func newCalendar(cfg config.CalendarConfig, logger logging.Logger) (calendar.Provider, error) {
	switch cfg.Provider {
	case "google":
		return calendar.NewGoogleProvider(func(o *calendar.GoogleOptions) {
			o.Endpoint = cfg.Endpoint
			o.Logger = logger
		}), nil
	case "ics":
		return calendar.NewICSProvider(cfg.ICSDir, func(o *calendar.ICSOptions) {
			o.Logger = logger
		}), nil
	default:
		return nil, fmt.Errorf("unsupported calendar provider %q", cfg.Provider)
	}
}

func newCredentials(cfg *config.Config, logger logging.Logger) credential.Provider {
	c := cfg.Credential
	if cfg.UsesOAuth() {
		return credential.NewOAuthProvider(func(o *credential.OAuthOptions) {
			o.ClientID = c.ClientID
			o.ClientSecret = c.ClientSecret
			o.RefreshToken = c.RefreshToken
			o.Logger = logger
		})
	}
	return credential.NewStaticProvider(c.AccessToken)
}
