package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrOutcome  = "outcome"
	attrStatus   = "status"
	attrTool     = "tool"
	attrProvider = "provider"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Run outcomes.
const (
	OutcomeEnd   = "end"
	OutcomeError = "error"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	runsTotal   metric.Int64Counter
	runDuration metric.Float64Histogram
	activeRuns  metric.Int64UpDownCounter

	plannerCallsTotal   metric.Int64Counter
	plannerCallDuration metric.Float64Histogram

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	calendarOperationsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.runsTotal, err = meter.Int64Counter(
		"agent_runs_total",
		metric.WithDescription("Total number of conversation runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_runs_total counter: %w", err)
	}

	m.runDuration, err = meter.Float64Histogram(
		"agent_run_duration_seconds",
		metric.WithDescription("Conversation run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_run_duration_seconds histogram: %w", err)
	}

	m.activeRuns, err = meter.Int64UpDownCounter(
		"agent_active_runs",
		metric.WithDescription("Number of conversation runs in flight"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_active_runs gauge: %w", err)
	}

	m.plannerCallsTotal, err = meter.Int64Counter(
		"planner_calls_total",
		metric.WithDescription("Total number of planner model invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner_calls_total counter: %w", err)
	}

	m.plannerCallDuration, err = meter.Float64Histogram(
		"planner_call_duration_seconds",
		metric.WithDescription("Planner model invocation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner_call_duration_seconds histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"tool_invocations_total",
		metric.WithDescription("Total number of tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"tool_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_duration_seconds histogram: %w", err)
	}

	m.calendarOperationsTotal, err = meter.Int64Counter(
		"calendar_api_operations_total",
		metric.WithDescription("Total number of calendar provider writes"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operations_total counter: %w", err)
	}

	return m, nil
}

// RecordRun records a finished conversation run. Outcome is OutcomeEnd or OutcomeError.
func (m *Metrics) RecordRun(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil || m.runsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(attrOutcome, outcome))
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
}

// RunStarted increments the in-flight run gauge.
func (m *Metrics) RunStarted(ctx context.Context) {
	if m == nil || m.activeRuns == nil {
		return
	}
	m.activeRuns.Add(ctx, 1)
}

// RunFinished decrements the in-flight run gauge.
func (m *Metrics) RunFinished(ctx context.Context) {
	if m == nil || m.activeRuns == nil {
		return
	}
	m.activeRuns.Add(ctx, -1)
}

// RecordPlannerCall records one model invocation.
func (m *Metrics) RecordPlannerCall(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.plannerCallsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	m.plannerCallsTotal.Add(ctx, 1, attrs)
	m.plannerCallDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordToolInvocation records a tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCalendarOperation records a calendar write attempt.
func (m *Metrics) RecordCalendarOperation(ctx context.Context, provider, status string) {
	if m == nil || m.calendarOperationsTotal == nil {
		return
	}
	m.calendarOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrStatus, status),
	))
}
