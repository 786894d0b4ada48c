// Package projector turns the message log of a conversation run into the
// typed, timestamped AgentEvent sequence returned to clients.
//
// A Projector is fed snapshots of the conversation after every state machine
// transition and emits events for the messages appended since the previous
// snapshot. Finish closes the sequence with exactly one terminal event.
package projector
