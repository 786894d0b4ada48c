package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/impromptu/core"
)

// CallbackType defines the lifecycle points where callbacks are executed.
type CallbackType string

const (
	// CallbackBeforeRun is triggered before the agent runs. An error
	// aborts the run, which then ends with an AgentError event.
	CallbackBeforeRun CallbackType = "before_run"

	// CallbackAfterRun is triggered with the finished event list. Errors
	// are logged and do not alter the events.
	CallbackAfterRun CallbackType = "after_run"
)

// CallbackContext describes the run a callback is executed for.
type CallbackContext struct {
	RunID    string
	Input    string
	TimeZone string
	// Events is populated for CallbackAfterRun.
	Events []core.AgentEvent
}

// Callback defines the interface for run lifecycle hooks.
//
// Callbacks run synchronously on the request path and must be safe for
// concurrent use.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(CallbackAfterRun,
//	    func(ctx context.Context, c *CallbackContext) error {
//	        return store.Save(ctx, c.RunID, c.Events)
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks by type and executes them in registration
// order. The first error stops the chain.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for callbackType.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// InputLimitCallback rejects runs whose input exceeds MaxBytes.
type InputLimitCallback struct {
	MaxBytes int
}

// NewInputLimitCallback creates a before-run callback bounding input size.
func NewInputLimitCallback(maxBytes int) *InputLimitCallback {
	return &InputLimitCallback{MaxBytes: maxBytes}
}

// Type returns CallbackBeforeRun.
func (c *InputLimitCallback) Type() CallbackType { return CallbackBeforeRun }

// Execute fails when the input is too long.
func (c *InputLimitCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.MaxBytes > 0 && len(callbackCtx.Input) > c.MaxBytes {
		return fmt.Errorf("input of %d bytes exceeds limit of %d", len(callbackCtx.Input), c.MaxBytes)
	}
	return nil
}
