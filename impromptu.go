// Package impromptu provides a high-level façade over the calendar agent:
// one call wires the tool registry, the CalendarAgent and the run Engine, and
// ChatInterface runs a single request to completion.
//
// Most applications interact with this package by:
//  1. Choosing a planner model (model/anthropic or model/openai)
//  2. Choosing a credential source and a calendar provider
//  3. Calling ChatInterface per user request
//
// ChatInterface never fails: every outcome, including model outages and
// rejected requests, is reported in the returned event list, which always
// ends with exactly one AgentEnd or AgentError event.
package impromptu

import (
	"context"
	"errors"

	"github.com/hupe1980/impromptu/agent"
	"github.com/hupe1980/impromptu/calendar"
	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/credential"
	"github.com/hupe1980/impromptu/engine"
	"github.com/hupe1980/impromptu/internal/instrumentation"
	"github.com/hupe1980/impromptu/logging"
	"github.com/hupe1980/impromptu/model"
	"github.com/hupe1980/impromptu/toolset"
)

// Options configures an Impromptu instance.
type Options struct {
	// Credentials supplies calendar access tokens. Required.
	Credentials credential.Provider
	// Calendar receives created events. Required.
	Calendar calendar.Provider
	// CalendarID defaults to "primary".
	CalendarID string
	// ServerTimeZone is reported when the client sent no usable zone.
	ServerTimeZone string

	// Agent tunes a single run (policy, turn bound, timeouts, ordering guard).
	Agent []func(o *agent.Options)
	// EngineConfig bounds concurrent runs. Defaults to engine.DefaultConfig.
	EngineConfig engine.Config
	// Callbacks are run-lifecycle hooks registered with the engine.
	Callbacks []engine.Callback

	Clock   core.Clock
	Logger  logging.Logger
	Metrics *instrumentation.Metrics
}

// Impromptu is the assembled calendar assistant.
type Impromptu struct {
	engine *engine.Engine
}

// New assembles the assistant around llm.
func New(llm model.Model, optFns ...func(o *Options)) (*Impromptu, error) {
	opts := Options{
		CalendarID:     calendar.DefaultCalendarID,
		ServerTimeZone: "UTC",
		EngineConfig:   engine.DefaultConfig,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Credentials == nil {
		return nil, errors.New("impromptu: credential provider is required")
	}
	if opts.Calendar == nil {
		return nil, errors.New("impromptu: calendar provider is required")
	}

	registry, err := toolset.New(func(o *toolset.Options) {
		o.Credentials = opts.Credentials
		o.Calendar = opts.Calendar
		o.CalendarID = opts.CalendarID
		o.ServerTimeZone = opts.ServerTimeZone
		o.Clock = opts.Clock
		o.Metrics = opts.Metrics
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	agentOpts := append([]func(o *agent.Options){func(o *agent.Options) {
		o.Clock = opts.Clock
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	}}, opts.Agent...)
	calAgent, err := agent.NewCalendarAgent(llm, registry, agentOpts...)
	if err != nil {
		return nil, err
	}

	eng := engine.New(calAgent, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Callbacks = opts.Callbacks
		o.Clock = opts.Clock
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	return &Impromptu{engine: eng}, nil
}

// ChatInterface runs one request and returns its complete, ordered event list.
// timezone is the client's optional IANA zone.
func (i *Impromptu) ChatInterface(ctx context.Context, inputMessage, timezone string) []core.AgentEvent {
	return i.engine.Chat(ctx, inputMessage, timezone)
}

// Chat is ChatInterface under the name the HTTP transport expects.
func (i *Impromptu) Chat(ctx context.Context, inputMessage, timezone string) []core.AgentEvent {
	return i.ChatInterface(ctx, inputMessage, timezone)
}

// ActiveRuns returns the number of runs currently executing.
func (i *Impromptu) ActiveRuns() int { return i.engine.ActiveRuns() }
