package flow

import (
	"context"
	"fmt"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/logging"
)

// MachineOptions configures a StateMachine.
type MachineOptions struct {
	// MaxTurns bounds planner invocations per run. 0 means unlimited.
	MaxTurns int
	Logger   logging.Logger
	Observer Observer
}

// StateMachine alternates between planning and dispatching:
//
//	Start -> Planning            seed system policy and user request
//	Planning -> Dispatching      reply carries tool calls
//	Planning -> Done             reply carries no tool calls
//	Dispatching -> Planning      every call has a result
//	any -> Done                  fatal error
//
// Planner and dispatcher never run concurrently within one run.
type StateMachine struct {
	planner    *Planner
	dispatcher *Dispatcher
	opts       MachineOptions
}

// NewStateMachine creates a state machine.
func NewStateMachine(planner *Planner, dispatcher *Dispatcher, optFns ...func(o *MachineOptions)) *StateMachine {
	opts := MachineOptions{
		MaxTurns: 8,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &StateMachine{planner: planner, dispatcher: dispatcher, opts: opts}
}

// Run drives conv from Start to Done. A nil error is a normal termination;
// any error ends the run abnormally. conv must be empty.
func (m *StateMachine) Run(ctx context.Context, conv *core.Conversation, policy, input string) error {
	run := &runState{m: m, conv: conv, state: StateStart, observe: m.opts.Observer}
	return run.execute(ctx, policy, input)
}

type runState struct {
	m       *StateMachine
	conv    *core.Conversation
	state   State
	observe Observer
}

func (r *runState) transition(to State) {
	from := r.state
	r.state = to
	r.m.opts.Logger.Debug("machine.transition", "from", from.String(), logging.KeyState, to.String(), "messages", r.conv.Len())
	if r.observe != nil {
		r.observe(from, to, r.conv)
	}
}

func (r *runState) fail(err error) error {
	r.transition(StateDone)
	return err
}

func (r *runState) execute(ctx context.Context, policy, input string) error {
	if r.conv.Len() != 0 {
		return fmt.Errorf("state machine: conversation already started")
	}
	if _, err := r.conv.Append(core.NewSystemMessage(policy)); err != nil {
		return r.fail(err)
	}
	if _, err := r.conv.Append(core.NewUserMessage(input)); err != nil {
		return r.fail(err)
	}
	r.transition(StatePlanning)

	limiter := core.NewTurnLimiter(r.m.opts.MaxTurns)
	for {
		if err := ctx.Err(); err != nil {
			return r.fail(err)
		}
		if err := limiter.Increment(); err != nil {
			r.m.opts.Logger.Warn("machine.max_turns", "turns", limiter.Count()-1)
			return r.fail(err)
		}

		reply, err := r.m.planner.Plan(ctx, r.conv)
		if err != nil {
			return r.fail(err)
		}
		reply = r.sanitize(reply)

		if _, err := r.conv.Append(reply); err != nil {
			return r.fail(err)
		}

		calls := reply.FunctionCalls()
		if len(calls) == 0 {
			r.transition(StateDone)
			return nil
		}
		r.transition(StateDispatching)

		results, err := r.m.dispatcher.Dispatch(ctx, r.conv, calls)
		if err != nil {
			return r.fail(err)
		}
		for _, res := range results {
			if _, err := r.conv.Append(core.NewToolResultMessage(res)); err != nil {
				return r.fail(err)
			}
		}
		r.transition(StatePlanning)
	}
}

// sanitize drops tool calls that cannot be correlated with a result: calls
// without id or name, and ids already used in this conversation or reply.
func (r *runState) sanitize(reply core.Message) core.Message {
	calls := reply.FunctionCalls()
	if len(calls) == 0 {
		return reply
	}

	seen := map[string]struct{}{}
	kept := make([]core.FunctionCall, 0, len(calls))
	for _, fc := range calls {
		var perr *core.ProtocolError
		switch {
		case !fc.Correlatable():
			perr = &core.ProtocolError{CallID: fc.ID, Message: "tool call without id or name dropped"}
		case r.isKnownCall(fc.ID, seen):
			perr = &core.ProtocolError{CallID: fc.ID, Message: "duplicate tool call id dropped"}
		}
		if perr != nil {
			r.m.opts.Logger.Warn("machine.protocol_error", logging.KeyError, perr.Error(), logging.KeyTool, fc.Name)
			continue
		}
		seen[fc.ID] = struct{}{}
		kept = append(kept, fc)
	}

	if len(kept) == len(calls) {
		return reply
	}
	return core.NewAssistantMessage(reply.Text(), kept...)
}

func (r *runState) isKnownCall(id string, seen map[string]struct{}) bool {
	if _, dup := seen[id]; dup {
		return true
	}
	_, known := r.conv.CallByID(id)
	return known
}
