package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the AgentEvent union on the wire.
type EventType string

const (
	EventTypeAIMessage  EventType = "ai_message"
	EventTypeAIToolCall EventType = "ai_tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypeAgentEnd   EventType = "agent_end"
	EventTypeAgentError EventType = "agent_error"
)

// UnknownToolName is reported for tool results that carry no tool name.
const UnknownToolName = "unknown_tool"

// AgentEvent is the client-visible unit of a conversation run. The set of
// implementations is closed; every variant serializes with a "type" tag and a
// Unix millisecond "timestamp".
type AgentEvent interface {
	EventType() EventType
	EventTime() time.Time
	isAgentEvent()
}

// ToolCallInfo is the client view of one tool call request.
type ToolCallInfo struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id"`
}

// AIMessageEvent carries planner free text.
type AIMessageEvent struct {
	Type      EventType `json:"type"`
	Content   string    `json:"content"`
	Timestamp int64     `json:"timestamp"`
}

// AIToolCallEvent lists the well-formed tool calls of one planner reply.
type AIToolCallEvent struct {
	Type      EventType      `json:"type"`
	ToolCalls []ToolCallInfo `json:"toolCalls"`
	Timestamp int64          `json:"timestamp"`
}

// ToolResultEvent carries the stringified outcome of one tool call.
type ToolResultEvent struct {
	Type       EventType `json:"type"`
	ToolName   string    `json:"toolName"`
	ToolCallID string    `json:"toolCallId"`
	Content    string    `json:"content"`
	Timestamp  int64     `json:"timestamp"`
}

// AgentEndEvent terminates a successful run.
type AgentEndEvent struct {
	Type         EventType `json:"type"`
	FinalMessage string    `json:"finalMessage,omitempty"`
	Timestamp    int64     `json:"timestamp"`
}

// AgentErrorEvent terminates a failed run.
type AgentErrorEvent struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
	Timestamp int64     `json:"timestamp"`
}

func (AIMessageEvent) isAgentEvent()  {}
func (AIToolCallEvent) isAgentEvent() {}
func (ToolResultEvent) isAgentEvent() {}
func (AgentEndEvent) isAgentEvent()   {}
func (AgentErrorEvent) isAgentEvent() {}

func (AIMessageEvent) EventType() EventType  { return EventTypeAIMessage }
func (AIToolCallEvent) EventType() EventType { return EventTypeAIToolCall }
func (ToolResultEvent) EventType() EventType { return EventTypeToolResult }
func (AgentEndEvent) EventType() EventType   { return EventTypeAgentEnd }
func (AgentErrorEvent) EventType() EventType { return EventTypeAgentError }

func (e AIMessageEvent) EventTime() time.Time  { return time.UnixMilli(e.Timestamp) }
func (e AIToolCallEvent) EventTime() time.Time { return time.UnixMilli(e.Timestamp) }
func (e ToolResultEvent) EventTime() time.Time { return time.UnixMilli(e.Timestamp) }
func (e AgentEndEvent) EventTime() time.Time   { return time.UnixMilli(e.Timestamp) }
func (e AgentErrorEvent) EventTime() time.Time { return time.UnixMilli(e.Timestamp) }

// MarshalJSON forces the discriminator regardless of how the value was built.
func (e AIMessageEvent) MarshalJSON() ([]byte, error) {
	type alias AIMessageEvent
	e.Type = EventTypeAIMessage
	return json.Marshal(alias(e))
}

// MarshalJSON forces the discriminator and renders absent args as {}.
func (e AIToolCallEvent) MarshalJSON() ([]byte, error) {
	type alias AIToolCallEvent
	e.Type = EventTypeAIToolCall
	calls := make([]ToolCallInfo, len(e.ToolCalls))
	for i, c := range e.ToolCalls {
		if c.Args == nil {
			c.Args = map[string]any{}
		}
		calls[i] = c
	}
	e.ToolCalls = calls
	return json.Marshal(alias(e))
}

// MarshalJSON forces the discriminator regardless of how the value was built.
func (e ToolResultEvent) MarshalJSON() ([]byte, error) {
	type alias ToolResultEvent
	e.Type = EventTypeToolResult
	return json.Marshal(alias(e))
}

// MarshalJSON forces the discriminator regardless of how the value was built.
func (e AgentEndEvent) MarshalJSON() ([]byte, error) {
	type alias AgentEndEvent
	e.Type = EventTypeAgentEnd
	return json.Marshal(alias(e))
}

// MarshalJSON forces the discriminator regardless of how the value was built.
func (e AgentErrorEvent) MarshalJSON() ([]byte, error) {
	type alias AgentErrorEvent
	e.Type = EventTypeAgentError
	return json.Marshal(alias(e))
}

// NewAIMessageEvent creates an AIMessage event stamped at t.
func NewAIMessageEvent(content string, t time.Time) AIMessageEvent {
	return AIMessageEvent{Type: EventTypeAIMessage, Content: content, Timestamp: t.UnixMilli()}
}

// NewAIToolCallEvent creates an AIToolCall event stamped at t.
func NewAIToolCallEvent(calls []ToolCallInfo, t time.Time) AIToolCallEvent {
	return AIToolCallEvent{Type: EventTypeAIToolCall, ToolCalls: calls, Timestamp: t.UnixMilli()}
}

// NewToolResultEvent creates a ToolResult event stamped at t. An empty tool
// name is reported as UnknownToolName.
func NewToolResultEvent(toolName, toolCallID, content string, t time.Time) ToolResultEvent {
	if toolName == "" {
		toolName = UnknownToolName
	}
	return ToolResultEvent{Type: EventTypeToolResult, ToolName: toolName, ToolCallID: toolCallID, Content: content, Timestamp: t.UnixMilli()}
}

// NewAgentEndEvent creates the terminal success event stamped at t.
func NewAgentEndEvent(finalMessage string, t time.Time) AgentEndEvent {
	return AgentEndEvent{Type: EventTypeAgentEnd, FinalMessage: finalMessage, Timestamp: t.UnixMilli()}
}

// NewAgentErrorEvent creates the terminal failure event stamped at t.
func NewAgentErrorEvent(message string, t time.Time) AgentErrorEvent {
	if message == "" {
		message = "unknown error"
	}
	return AgentErrorEvent{Type: EventTypeAgentError, Message: message, Timestamp: t.UnixMilli()}
}

// IsTerminal reports whether ev ends a run.
func IsTerminal(ev AgentEvent) bool {
	switch ev.EventType() {
	case EventTypeAgentEnd, EventTypeAgentError:
		return true
	default:
		return false
	}
}

// DecodeEvent decodes a single wire event into its typed variant.
func DecodeEvent(data []byte) (AgentEvent, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	var (
		ev  AgentEvent
		err error
	)
	switch head.Type {
	case EventTypeAIMessage:
		var e AIMessageEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventTypeAIToolCall:
		var e AIToolCallEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventTypeToolResult:
		var e ToolResultEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventTypeAgentEnd:
		var e AgentEndEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventTypeAgentError:
		var e AgentErrorEvent
		err = json.Unmarshal(data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("decode event: unknown type %q", head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.Type, err)
	}
	return ev, nil
}

// DecodeEvents decodes a JSON array of wire events, preserving order.
func DecodeEvents(data []byte) ([]AgentEvent, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	events := make([]AgentEvent, 0, len(raw))
	for i, r := range raw {
		ev, err := DecodeEvent(r)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// NewID generates a new unique identifier for runs and synthesized tool call ids.
func NewID() string { return uuid.NewString() }
