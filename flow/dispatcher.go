package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/instrumentation"
	"github.com/hupe1980/impromptu/logging"
	"github.com/hupe1980/impromptu/tool"
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// MaxParallel caps concurrent tool calls of one reply. 0 means no cap.
	MaxParallel int
	// Timeout bounds each tool call. Zero disables the bound.
	Timeout time.Duration
	// Prerequisites maps a tool name to a tool that must already have a
	// result in the conversation before it may run.
	Prerequisites map[string]string
	Clock         core.Clock
	Logger        logging.Logger
	Metrics       *instrumentation.Metrics
}

// WithPrerequisite requires a result of before in the conversation before
// tool may be executed.
func WithPrerequisite(tool, before string) func(o *DispatcherOptions) {
	return func(o *DispatcherOptions) {
		if o.Prerequisites == nil {
			o.Prerequisites = map[string]string{}
		}
		o.Prerequisites[tool] = before
	}
}

// PanicError is returned when a tool panics. It is fatal to the run.
type PanicError struct {
	Tool  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("tool %s panicked: %v", e.Tool, e.Value)
}

// Dispatcher executes the tool calls of one assistant reply against the
// registry. Calls run concurrently; results come back in request order.
//
// Tool-level failures (unknown tool, bad arguments, validation, execution
// errors) become textual results. A panic, a timeout or cancellation of ctx
// is fatal and returned as an error.
type Dispatcher struct {
	registry *tool.Registry
	opts     DispatcherOptions
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *tool.Registry, optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{
		Timeout: 30 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Dispatcher{registry: registry, opts: opts}
}

type callOutcome struct {
	resp  core.FunctionResponse
	fatal error
}

// Dispatch executes calls and returns one response per call, in the order
// of calls.
func (d *Dispatcher) Dispatch(ctx context.Context, conv *core.Conversation, calls []core.FunctionCall) ([]core.FunctionResponse, error) {
	n := len(calls)
	if n == 0 {
		return nil, nil
	}

	// Prerequisites are judged against the log before this batch.
	blocked := make([]string, n)
	for i, fc := range calls {
		if before, ok := d.opts.Prerequisites[fc.Name]; ok && !conv.HasResultFor(before) {
			blocked[i] = before
		}
	}

	maxPar := d.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	outcomes := make([]callOutcome, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	batchStart := time.Now()
	for i := range calls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if blocked[idx] != "" {
				d.opts.Logger.Warn("tool.call.out_of_order", logging.KeyTool, fc.Name, logging.KeyCallID, fc.ID, "requires", blocked[idx])
				outcomes[idx] = callOutcome{resp: core.FunctionResponse{
					ID:    fc.ID,
					Name:  fc.Name,
					Error: fmt.Sprintf("tool %s requires a prior %s result", fc.Name, blocked[idx]),
				}}
				return
			}
			outcomes[idx] = d.execute(ctx, fc)
		}(i, calls[i])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	responses := make([]core.FunctionResponse, 0, n)
	for _, o := range outcomes {
		if o.fatal != nil {
			return nil, o.fatal
		}
		responses = append(responses, o.resp)
	}

	d.opts.Logger.Debug("tool.batch.complete",
		"count", n,
		"parallelism", maxPar,
		logging.KeyDurationMS, time.Since(batchStart).Milliseconds())

	return responses, nil
}

func (d *Dispatcher) execute(ctx context.Context, fc core.FunctionCall) callOutcome {
	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name}

	impl, ok := d.registry.Lookup(fc.Name)
	if !ok {
		resp.Error = fmt.Sprintf("%s: tool %s not found", tool.CodeNotFound, fc.Name)
		d.opts.Metrics.RecordToolInvocation(ctx, fc.Name, instrumentation.StatusError, 0)
		return callOutcome{resp: resp}
	}

	args, err := fc.Args()
	if err != nil {
		resp.Error = fmt.Sprintf("%s: %v", tool.CodeInvalidArguments, err)
		d.opts.Metrics.RecordToolInvocation(ctx, fc.Name, instrumentation.StatusError, 0)
		return callOutcome{resp: resp}
	}

	callCtx := ctx
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}
	toolCtx := core.NewToolContext(callCtx, fc.ID, fc.Name, d.opts.Logger).WithClock(d.opts.Clock)

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)

	start := time.Now()
	go func() {
		var r result
		defer func() {
			if v := recover(); v != nil {
				r = result{err: &PanicError{Tool: fc.Name, Value: v, Stack: debug.Stack()}}
			}
			done <- r
		}()
		r.value, r.err = impl.Call(toolCtx, args)
	}()

	var r result
	select {
	case r = <-done:
	case <-callCtx.Done():
		// The tool may still complete its side effect; it is no longer awaited.
		r = result{err: callCtx.Err()}
	}
	dur := time.Since(start)

	if fatal := d.fatal(ctx, callCtx, fc, r.err); fatal != nil {
		d.opts.Metrics.RecordToolInvocation(ctx, fc.Name, instrumentation.StatusError, dur)
		d.opts.Logger.Error("tool.call.fatal",
			logging.KeyTool, fc.Name,
			logging.KeyCallID, fc.ID,
			logging.KeyDurationMS, dur.Milliseconds(),
			logging.KeyError, fatal.Error())
		return callOutcome{fatal: fatal}
	}

	status := instrumentation.StatusSuccess
	if r.err != nil {
		status = instrumentation.StatusError
		resp.Error = errorText(r.err)
	} else {
		resp.Response = r.value
	}
	d.opts.Metrics.RecordToolInvocation(ctx, fc.Name, status, dur)

	d.opts.Logger.Info("tool.call.executed",
		logging.KeyTool, fc.Name,
		logging.KeyCallID, fc.ID,
		logging.KeyDurationMS, dur.Milliseconds(),
		"error", r.err != nil)

	return callOutcome{resp: resp}
}

// fatal classifies err as run-ending: panics, per-call timeouts and
// cancellation of the run.
func (d *Dispatcher) fatal(runCtx, callCtx context.Context, fc core.FunctionCall, err error) error {
	if err == nil {
		return nil
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe
	}
	if runCtx.Err() != nil {
		return runCtx.Err()
	}
	if callCtx.Err() != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", core.ErrToolTimeout, fc.Name, d.opts.Timeout)
	}
	return nil
}

// errorText renders a tool-level failure for the planner.
func errorText(err error) string {
	var te *tool.ToolError
	if errors.As(err, &te) && te.Code != "" {
		return te.Code + ": " + te.Message
	}
	return err.Error()
}
