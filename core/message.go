package core

import "strings"

// Role identifies the variant of a Message.
type Role string

const (
	// RoleSystem marks the static system policy, set once per conversation.
	RoleSystem Role = "system"
	// RoleUser marks the raw user request.
	RoleUser Role = "user"
	// RoleAssistant marks a planner reply (text and/or tool calls).
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of exactly one tool call.
	RoleTool Role = "tool"
)

// Message is one turn in the conversation. Messages are treated as immutable
// once appended to a Conversation.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewSystemMessage creates the system policy message.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Parts: []Part{TextPart{Text: text}}}
}

// NewUserMessage creates a user request message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantMessage creates a planner reply with optional text followed by
// zero or more tool call requests in the order given.
func NewAssistantMessage(text string, calls ...FunctionCall) Message {
	parts := make([]Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, TextPart{Text: text})
	}
	for _, c := range calls {
		parts = append(parts, FunctionCallPart{FunctionCall: c})
	}
	return Message{Role: RoleAssistant, Parts: parts}
}

// NewToolResultMessage creates the result message for a single tool call.
func NewToolResultMessage(resp FunctionResponse) Message {
	return Message{Role: RoleTool, Parts: []Part{FunctionResponsePart{FunctionResponse: resp}}}
}

// Text returns the concatenation of all text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// FunctionCalls returns the tool call requests in their original order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// HasToolCalls reports whether the message requests at least one tool call.
func (m Message) HasToolCalls() bool {
	for _, p := range m.Parts {
		if _, ok := p.(FunctionCallPart); ok {
			return true
		}
	}
	return false
}

// FunctionResponse returns the first function response part, if any.
func (m Message) FunctionResponse() (FunctionResponse, bool) {
	for _, p := range m.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			return fr.FunctionResponse, true
		}
	}
	return FunctionResponse{}, false
}

func (m Message) clone() Message {
	parts := make([]Part, len(m.Parts))
	copy(parts, m.Parts)
	return Message{Role: m.Role, Parts: parts}
}
