package model

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/impromptu/core"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of turns.
var ErrScriptExhausted = errors.New("scripted model: no more turns")

// Turn is one canned planner reply. Respond, when set, builds the reply from
// the request, which lets tests echo tool results back into later turns.
type Turn struct {
	Message core.Message
	Respond func(req Request) (core.Message, error)
	Err     error
	Delay   time.Duration
}

// ScriptedModel is a deterministic in-memory Model that replays turns in order.
// It records every request it receives and is safe for concurrent use.
type ScriptedModel struct {
	info Info

	mu       sync.Mutex
	turns    []Turn
	next     int
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel with tool support enabled.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		turns: turns,
	}
}

// Reply is a Turn answering with text and optional tool calls.
func Reply(text string, calls ...core.FunctionCall) Turn {
	return Turn{Message: core.NewAssistantMessage(text, calls...)}
}

// Fail is a Turn answering with err.
func Fail(err error) Turn { return Turn{Err: err} }

// Requests returns a copy of the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		turn Turn
		ok   bool
	)
	if m.next < len(m.turns) {
		turn, ok = m.turns[m.next], true
		m.next++
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if !ok {
			errCh <- ErrScriptExhausted
			return
		}

		if turn.Delay > 0 {
			timer := time.NewTimer(turn.Delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-timer.C:
			}
		}

		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		msg := turn.Message
		if turn.Respond != nil {
			var err error
			if msg, err = turn.Respond(req); err != nil {
				errCh <- err
				return
			}
		}

		finish := "stop"
		if msg.HasToolCalls() {
			finish = "tool_calls"
		}
		respCh <- Response{Message: msg, FinishReason: finish}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
