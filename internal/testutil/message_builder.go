package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/impromptu/core"
)

// Call builds a FunctionCall with args marshalled to JSON. A string args is
// used verbatim so tests can supply malformed payloads.
func Call(id, name string, args any) core.FunctionCall {
	fc := core.FunctionCall{ID: id, Name: name}
	switch v := args.(type) {
	case nil:
	case string:
		fc.Arguments = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("testutil: marshal args: %v", err))
		}
		fc.Arguments = string(raw)
	}
	return fc
}

// ReplyBuilder provides a fluent helper for constructing assistant replies.
// Example:
//
//	msg := NewReplyBuilder().Text("on it").Call("c1", "askTimeAndTimeZone", nil).Build()
type ReplyBuilder struct {
	text  string
	calls []core.FunctionCall
}

// NewReplyBuilder creates an empty reply builder.
func NewReplyBuilder() *ReplyBuilder { return &ReplyBuilder{} }

// Text sets the reply text (chainable).
func (b *ReplyBuilder) Text(t string) *ReplyBuilder { b.text = t; return b }

// Call appends a tool call (chainable).
func (b *ReplyBuilder) Call(id, name string, args any) *ReplyBuilder {
	b.calls = append(b.calls, Call(id, name, args))
	return b
}

// Build returns the assistant message.
func (b *ReplyBuilder) Build() core.Message {
	return core.NewAssistantMessage(b.text, b.calls...)
}

// Conversation appends msgs to a new conversation and panics on protocol
// errors, which in tests indicate a broken fixture.
func Conversation(msgs ...core.Message) *core.Conversation {
	conv := core.NewConversation()
	for _, m := range msgs {
		if _, err := conv.Append(m); err != nil {
			panic(fmt.Sprintf("testutil: %v", err))
		}
	}
	return conv
}

// Result builds a successful tool result message.
func Result(id, name string, response any) core.Message {
	return core.NewToolResultMessage(core.FunctionResponse{ID: id, Name: name, Response: response})
}
