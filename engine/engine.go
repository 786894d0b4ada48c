package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/instrumentation"
	"github.com/hupe1980/impromptu/logging"
)

// Config defines tuning parameters for the Engine.
type Config struct {
	// MaxConcurrentRuns limits the number of runs executing simultaneously.
	// Set to 0 for unlimited.
	MaxConcurrentRuns int
}

// DefaultConfig provides the default configuration values.
var DefaultConfig = Config{
	MaxConcurrentRuns: 10,
}

// Agent runs one conversation and returns its events.
type Agent interface {
	Chat(ctx context.Context, input, timezone string) []core.AgentEvent
}

// Options configures an Engine instance.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config
	// Callbacks are registered in order.
	Callbacks []Callback
	Clock     core.Clock
	Logger    logging.Logger
	Metrics   *instrumentation.Metrics
}

// Engine bounds, identifies and observes conversation runs.
type Engine struct {
	agent     Agent
	sem       chan struct{}
	callbacks *CallbackManager
	active    atomic.Int64
	opts      Options
}

// New creates an Engine executing runs on agent.
func New(agent Agent, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	e := &Engine{
		agent:     agent,
		callbacks: NewCallbackManager(),
		opts:      opts,
	}
	if opts.Config.MaxConcurrentRuns > 0 {
		e.sem = make(chan struct{}, opts.Config.MaxConcurrentRuns)
	}
	for _, cb := range opts.Callbacks {
		e.callbacks.RegisterCallback(cb)
	}
	return e
}

// RegisterCallback adds a lifecycle callback.
func (e *Engine) RegisterCallback(cb Callback) { e.callbacks.RegisterCallback(cb) }

// ActiveRuns returns the number of runs currently executing.
func (e *Engine) ActiveRuns() int { return int(e.active.Load()) }

// Chat executes one run. It never fails: admission, callback and agent
// failures are all reported as the terminal AgentError event.
func (e *Engine) Chat(ctx context.Context, input, timezone string) []core.AgentEvent {
	runID := core.NewID()
	ctx = core.WithRunInfo(ctx, core.RunInfo{RunID: runID, TimeZone: timezone})
	logger := logging.With(e.opts.Logger, logging.KeyRunID, runID)

	if err := e.acquire(ctx); err != nil {
		logger.Warn("engine.run.rejected", logging.KeyError, err.Error())
		e.opts.Metrics.RecordRun(ctx, instrumentation.OutcomeError, 0)
		return e.failed(fmt.Errorf("run not started: %w", err))
	}
	defer e.release()

	e.active.Add(1)
	defer e.active.Add(-1)
	e.opts.Metrics.RunStarted(ctx)
	defer e.opts.Metrics.RunFinished(ctx)

	logger.Info("engine.run.start", "timezone", timezone, "input_length", len(input))
	start := time.Now()

	cbCtx := &CallbackContext{RunID: runID, Input: input, TimeZone: timezone}

	var events []core.AgentEvent
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeRun, cbCtx); err != nil {
		events = e.failed(err)
	} else {
		events = e.agent.Chat(ctx, input, timezone)
	}
	dur := time.Since(start)

	outcome := instrumentation.OutcomeEnd
	if n := len(events); n == 0 || events[n-1].EventType() != core.EventTypeAgentEnd {
		outcome = instrumentation.OutcomeError
	}
	e.opts.Metrics.RecordRun(ctx, outcome, dur)
	logger.Info("engine.run.complete",
		"outcome", outcome,
		"events", len(events),
		logging.KeyDurationMS, dur.Milliseconds())

	cbCtx.Events = events
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterRun, cbCtx); err != nil {
		logger.Warn("engine.callback.failed", "callback", string(CallbackAfterRun), logging.KeyError, err.Error())
	}

	return events
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.sem == nil {
		return ctx.Err()
	}
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	if e.sem != nil {
		<-e.sem
	}
}

func (e *Engine) failed(err error) []core.AgentEvent {
	return []core.AgentEvent{core.NewAgentErrorEvent(err.Error(), e.opts.Clock.Now())}
}
