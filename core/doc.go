// Package core provides the foundational domain types used by impromptu. It
// defines the core abstractions for:
//
//   - Messages (system policy, user request, assistant reply, tool result)
//   - Conversation (the append-only, index-stable message log of one run)
//   - AgentEvent (the typed, timestamped event union handed to clients)
//   - ToolContext (scoped execution surface for tool implementations)
//   - the error taxonomy shared by the planner, the tools and the state machine
//
// The package keeps orchestration (planner, dispatch, state machine) and
// concrete integrations (models, calendar providers) out of scope, so every
// other package can depend on it without cycles.
package core
