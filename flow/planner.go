package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/instrumentation"
	"github.com/hupe1980/impromptu/logging"
	"github.com/hupe1980/impromptu/model"
	"github.com/hupe1980/impromptu/tool"
)

// PlannerOptions configures a Planner.
type PlannerOptions struct {
	// Timeout bounds a single model invocation. Zero disables the bound.
	Timeout time.Duration
	// Stream asks the model for incremental chunks.
	Stream  bool
	Logger  logging.Logger
	Metrics *instrumentation.Metrics
}

// Planner invokes the model with the policy, the tool catalog and the
// conversation so far, and returns the next assistant reply.
type Planner struct {
	llm        model.Model
	processors []RequestProcessor
	opts       PlannerOptions
}

// NewPlanner creates a planner over llm exposing the tools of registry.
func NewPlanner(llm model.Model, registry *tool.Registry, optFns ...func(o *PlannerOptions)) *Planner {
	opts := PlannerOptions{
		Timeout: 60 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Planner{
		llm: llm,
		processors: []RequestProcessor{
			NewInstructionsProcessor(),
			NewContentsProcessor(),
			NewToolsProcessor(registry),
		},
		opts: opts,
	}
}

// AddRequestProcessor appends a request processor; order of registration
// defines execution order.
func (p *Planner) AddRequestProcessor(processor RequestProcessor) {
	p.processors = append(p.processors, processor)
}

// Plan returns the next assistant reply. Every failure is a *core.PlannerError.
func (p *Planner) Plan(ctx context.Context, conv *core.Conversation) (core.Message, error) {
	info := p.llm.Info()

	req := model.Request{Stream: p.opts.Stream}
	for _, processor := range p.processors {
		if err := processor.ProcessRequest(ctx, conv, &req); err != nil {
			return core.Message{}, &core.PlannerError{Model: info.Name, Err: fmt.Errorf("request processor %s failed: %w", processor.Name(), err)}
		}
	}

	callCtx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	p.opts.Logger.Debug("planner.invoke.start",
		logging.KeyProvider, info.Provider,
		"model", info.Name,
		"messages", len(req.Messages),
		"tools", len(req.Tools))

	start := time.Now()
	resp, err := p.generate(callCtx, req)
	dur := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("model call timed out after %s: %w", p.opts.Timeout, err)
		}
		p.opts.Metrics.RecordPlannerCall(ctx, instrumentation.StatusError, dur)
		p.opts.Logger.Error("planner.invoke.error",
			logging.KeyProvider, info.Provider,
			logging.KeyDurationMS, dur.Milliseconds(),
			logging.KeyError, err.Error())
		return core.Message{}, &core.PlannerError{Model: info.Name, Err: err}
	}

	p.opts.Metrics.RecordPlannerCall(ctx, instrumentation.StatusSuccess, dur)

	args := []any{
		logging.KeyProvider, info.Provider,
		logging.KeyDurationMS, dur.Milliseconds(),
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.Message.FunctionCalls()),
	}
	if resp.Usage != nil {
		args = append(args, "total_tokens", resp.Usage.TotalTokens)
	}
	p.opts.Logger.Info("planner.invoke.complete", args...)

	msg := resp.Message
	msg.Role = core.RoleAssistant
	return msg, nil
}

// generate drains the model channels and returns the final chunk.
func (p *Planner) generate(ctx context.Context, req model.Request) (model.Response, error) {
	respCh, errCh := p.llm.Generate(ctx, req)

	var (
		final model.Response
		got   bool
	)
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				final, got = resp, true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return model.Response{}, err
			}
		case <-ctx.Done():
			return model.Response{}, ctx.Err()
		}
	}

	if !got {
		return model.Response{}, errors.New("model returned no reply")
	}
	return final, nil
}
