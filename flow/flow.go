// Package flow drives one conversation run: a Planner asks the model for the
// next reply, a Dispatcher executes the tool calls it requests and a
// StateMachine alternates between the two until the model stops calling
// tools or a fatal error occurs.
package flow

import (
	"context"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/model"
)

// State is a state of the conversation state machine.
type State int

const (
	StateStart State = iota
	StatePlanning
	StateDispatching
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePlanning:
		return "planning"
	case StateDispatching:
		return "dispatching"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Observer is notified after every state transition with the conversation
// as it stands after the transition.
type Observer func(from, to State, conv *core.Conversation)

// RequestProcessor contributes to the model request before each planner call.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before model execution.
	ProcessRequest(ctx context.Context, conv *core.Conversation, req *model.Request) error
}
