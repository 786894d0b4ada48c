// Package instrumentation records OpenTelemetry metrics for conversation runs,
// planner calls, tool invocations and calendar writes, and exposes them in
// the Prometheus text format.
//
// A nil *Metrics is a valid no-op recorder, so components take it as an
// optional dependency.
package instrumentation
