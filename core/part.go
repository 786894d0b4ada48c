package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of a message. Concrete part types
// implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string // Plain UTF-8 text
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// FunctionCall describes a tool/function invocation request issued by the planner.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Correlation id, unique per conversation
	Name      string `json:"name"`                // Registered tool name
	Arguments string `json:"arguments,omitempty"` // Serialized argument object (JSON)
}

// Args decodes Arguments into a JSON object. An empty payload yields an empty
// map; anything that is not a JSON object is an error.
func (fc FunctionCall) Args() (map[string]any, error) {
	if fc.Arguments == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
		return nil, fmt.Errorf("arguments of %s are not a JSON object: %w", fc.Name, err)
	}
	if args == nil {
		return nil, fmt.Errorf("arguments of %s are not a JSON object", fc.Name)
	}
	return args, nil
}

// Correlatable reports whether the call carries both an id and a name, the
// minimum needed to pair it with a result.
func (fc FunctionCall) Correlatable() bool { return fc.ID != "" && fc.Name != "" }

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`       // Matches originating FunctionCall ID
	Name     string `json:"name"`               // Function name
	Response any    `json:"response,omitempty"` // Successful result (any shape)
	Error    string `json:"error,omitempty"`    // Populated on failure
}

// Content renders the response as text: strings verbatim, other values as
// JSON, failures as "Error: <message>".
func (fr FunctionResponse) Content() string {
	if fr.Error != "" {
		return "Error: " + fr.Error
	}
	switch v := fr.Response.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}
	return string(b)
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}
