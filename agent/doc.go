// Package agent contains the CalendarAgent, the entry point of one
// conversation run.
//
// A CalendarAgent owns a Planner and a Dispatcher built once over the shared
// tool registry. Each call to Chat seeds a fresh conversation with the system
// policy and the user request, drives the state machine to completion and
// returns the projected event list. Chat never returns an error: failures
// are reported as a terminal AgentError event.
//
// The system policy is an Instruction, either static text, a Go template
// rendered against the run metadata, or a Provider computed per run.
package agent
