package core

import (
	"fmt"
	"sync"
)

// Conversation is the append-only message log of a single run. Positions are
// stable: the message at index i never changes once appended. Tool call ids
// are indexed to the position of the reply that requested them so results can
// be correlated without scanning.
type Conversation struct {
	mu       sync.RWMutex
	messages []Message
	calls    map[string]int // call id -> index of requesting assistant reply
	results  map[string]int // call id -> index of tool result
	names    map[string]string
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		calls:   map[string]int{},
		results: map[string]int{},
		names:   map[string]string{},
	}
}

// Append validates and appends a message, returning its index. Violations of
// the correlation rules return a *ProtocolError and leave the log unchanged.
func (c *Conversation) Append(m Message) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m.Role {
	case RoleSystem:
		if len(c.messages) > 0 {
			return -1, &ProtocolError{Message: "system policy must be the first message"}
		}
	case RoleUser:
	case RoleAssistant:
		seen := map[string]struct{}{}
		for _, fc := range m.FunctionCalls() {
			if !fc.Correlatable() {
				return -1, &ProtocolError{CallID: fc.ID, Message: "tool call without id or name"}
			}
			if _, dup := c.calls[fc.ID]; dup {
				return -1, &ProtocolError{CallID: fc.ID, Message: "duplicate tool call id"}
			}
			if _, dup := seen[fc.ID]; dup {
				return -1, &ProtocolError{CallID: fc.ID, Message: "duplicate tool call id"}
			}
			seen[fc.ID] = struct{}{}
		}
	case RoleTool:
		fr, ok := m.FunctionResponse()
		if !ok {
			return -1, &ProtocolError{Message: "tool message without result"}
		}
		if _, ok := c.calls[fr.ID]; !ok {
			return -1, &ProtocolError{CallID: fr.ID, Message: "tool result references unknown call"}
		}
		if _, done := c.results[fr.ID]; done {
			return -1, &ProtocolError{CallID: fr.ID, Message: "tool call already has a result"}
		}
	default:
		return -1, &ProtocolError{Message: fmt.Sprintf("unknown role %q", m.Role)}
	}

	idx := len(c.messages)
	c.messages = append(c.messages, m.clone())

	switch m.Role {
	case RoleAssistant:
		for _, fc := range m.FunctionCalls() {
			c.calls[fc.ID] = idx
			c.names[fc.ID] = fc.Name
		}
	case RoleTool:
		fr, _ := m.FunctionResponse()
		c.results[fr.ID] = idx
	}

	return idx, nil
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Messages returns a copy of the full log.
func (c *Conversation) Messages() []Message {
	return c.Since(0)
}

// Since returns a copy of the messages at index n and later.
func (c *Conversation) Since(n int) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n >= len(c.messages) {
		return nil
	}
	out := make([]Message, len(c.messages)-n)
	copy(out, c.messages[n:])
	return out
}

// Last returns the most recent message.
func (c *Conversation) Last() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// CallByID returns the tool call request with the given id.
func (c *Conversation) CallByID(id string) (FunctionCall, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.calls[id]
	if !ok {
		return FunctionCall{}, false
	}
	for _, fc := range c.messages[idx].FunctionCalls() {
		if fc.ID == id {
			return fc, true
		}
	}
	return FunctionCall{}, false
}

// PendingCalls returns the calls of the latest assistant reply that have no
// result yet, in request order.
func (c *Conversation) PendingCalls() []FunctionCall {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role != RoleAssistant {
			continue
		}
		var pending []FunctionCall
		for _, fc := range c.messages[i].FunctionCalls() {
			if _, done := c.results[fc.ID]; !done {
				pending = append(pending, fc)
			}
		}
		return pending
	}
	return nil
}

// HasResultFor reports whether any call to the named tool has a successful
// result. Error results do not count.
func (c *Conversation) HasResultFor(toolName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for id, idx := range c.results {
		if c.names[id] != toolName {
			continue
		}
		if fr, ok := c.messages[idx].FunctionResponse(); ok && fr.Error == "" {
			return true
		}
	}
	return false
}

// LastAssistantText returns the text of the most recent assistant reply that
// carried text.
func (c *Conversation) LastAssistantText() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role != RoleAssistant {
			continue
		}
		if txt := c.messages[i].Text(); txt != "" {
			return txt
		}
	}
	return ""
}
