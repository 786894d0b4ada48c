package testutil

import (
	"time"

	"github.com/hupe1980/impromptu/core"
)

// StubTool is a configurable tool for dispatcher and agent tests.
type StubTool struct {
	ToolName string
	Delay    time.Duration
	Result   any
	Err      error
	Panic    any
	// Fn, when set, replaces Result/Err.
	Fn func(tc *core.ToolContext, args map[string]any) (any, error)
}

func (s *StubTool) Name() string               { return s.ToolName }
func (s *StubTool) Description() string        { return "stub tool" }
func (s *StubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (s *StubTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}
	if s.Panic != nil {
		panic(s.Panic)
	}
	if s.Fn != nil {
		return s.Fn(tc, args)
	}
	return s.Result, s.Err
}
