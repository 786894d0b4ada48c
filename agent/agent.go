package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/flow"
	"github.com/hupe1980/impromptu/internal/instrumentation"
	"github.com/hupe1980/impromptu/logging"
	"github.com/hupe1980/impromptu/model"
	"github.com/hupe1980/impromptu/projector"
	"github.com/hupe1980/impromptu/tool"
	"github.com/hupe1980/impromptu/toolset"
)

// Options configures a CalendarAgent.
//
// Use functional options with NewCalendarAgent to override defaults.
type Options struct {
	// Instruction is the system policy. Defaults to DefaultPolicy.
	Instruction Instruction
	// MaxTurns bounds planner invocations per run.
	MaxTurns int
	// ModelTimeout bounds one planner invocation.
	ModelTimeout time.Duration
	// ToolTimeout bounds one tool call.
	ToolTimeout time.Duration
	// MaxParallelTools caps concurrent tool calls of one reply. 0 means no cap.
	MaxParallelTools int
	// EnforceToolOrder refuses makeGCalendarEntry until askTimeAndTimeZone
	// has produced a result in the same run.
	EnforceToolOrder bool
	// Stream asks the model for incremental chunks.
	Stream  bool
	Clock   core.Clock
	Logger  logging.Logger
	Metrics *instrumentation.Metrics
}

// CalendarAgent runs conversations against a model and the calendar tools.
// It is safe for concurrent use; runs share nothing but the read-only
// registry and the collaborators behind it.
type CalendarAgent struct {
	planner    *flow.Planner
	dispatcher *flow.Dispatcher
	opts       Options
}

// NewCalendarAgent creates an agent planning with llm over the tools of registry.
func NewCalendarAgent(llm model.Model, registry *tool.Registry, optFns ...func(o *Options)) (*CalendarAgent, error) {
	if llm == nil {
		return nil, errors.New("agent: model is required")
	}
	if registry == nil {
		return nil, errors.New("agent: tool registry is required")
	}

	opts := Options{
		Instruction:      NewInstructionFromText(DefaultPolicy),
		MaxTurns:         8,
		ModelTimeout:     60 * time.Second,
		ToolTimeout:      30 * time.Second,
		EnforceToolOrder: true,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Instruction.IsZero() {
		opts.Instruction = NewInstructionFromText(DefaultPolicy)
	}

	planner := flow.NewPlanner(llm, registry, func(o *flow.PlannerOptions) {
		o.Timeout = opts.ModelTimeout
		o.Stream = opts.Stream
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	dispatchOpts := []func(o *flow.DispatcherOptions){func(o *flow.DispatcherOptions) {
		o.MaxParallel = opts.MaxParallelTools
		o.Timeout = opts.ToolTimeout
		o.Clock = opts.Clock
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	}}
	if opts.EnforceToolOrder {
		dispatchOpts = append(dispatchOpts, flow.WithPrerequisite(toolset.MakeCalendarEntryName, toolset.AskTimeAndTimeZoneName))
	}

	return &CalendarAgent{
		planner:    planner,
		dispatcher: flow.NewDispatcher(registry, dispatchOpts...),
		opts:       opts,
	}, nil
}

// Chat runs one conversation for input and returns its events. The list
// always ends with exactly one AgentEnd or AgentError event.
//
// timezone is the client's IANA zone; an empty or unknown zone falls back
// to the server zone. A run id already present on ctx is kept.
func (a *CalendarAgent) Chat(ctx context.Context, input, timezone string) []core.AgentEvent {
	info := core.RunInfoFrom(ctx)
	if info.RunID == "" {
		info.RunID = core.NewID()
	}
	info.TimeZone = ""
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err == nil {
			info.TimeZone = timezone
		} else {
			a.opts.Logger.Warn("agent.timezone.invalid", logging.KeyRunID, info.RunID, "timezone", timezone)
		}
	}
	ctx = core.WithRunInfo(ctx, info)
	logger := logging.With(a.opts.Logger, logging.KeyRunID, info.RunID)

	conv := core.NewConversation()
	proj := projector.New(func(o *projector.Options) {
		o.Clock = a.opts.Clock
		o.Logger = logger
	})

	policy, err := a.opts.Instruction.Resolve(ctx)
	if err != nil {
		return proj.Finish(conv, fmt.Errorf("resolve system policy: %w", err))
	}

	machine := flow.NewStateMachine(a.planner, a.dispatcher, func(o *flow.MachineOptions) {
		o.MaxTurns = a.opts.MaxTurns
		o.Logger = logger
		o.Observer = func(_, _ flow.State, c *core.Conversation) { proj.Observe(c) }
	})

	err = machine.Run(ctx, conv, policy, input)
	if err != nil {
		logger.Warn("agent.run.failed", logging.KeyError, err.Error())
	}
	return proj.Finish(conv, err)
}
