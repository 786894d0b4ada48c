package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Schema is a compiled JSON schema ready to validate tool arguments.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON schema document expressed as Go values. The
// document is round-tripped through JSON so literal Go slices and integers
// are accepted.
func CompileSchema(name string, schema map[string]any) (*Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema for %q: %w", name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema for %q: %w", name, err)
	}

	url := name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("invalid JSON schema for %q: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile JSON schema for %q: %w", name, err)
	}

	return &Schema{name: name, compiled: compiled}, nil
}

// Validate checks params against the schema. Failures are reported as a
// *ValidationError naming the offending field.
func (s *Schema) Validate(params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	// Normalize Go values (ints, typed slices) into their JSON shape.
	raw, err := json.Marshal(params)
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("arguments are not JSON serializable: %v", err)}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}

	if err := s.compiled.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return &ValidationError{Message: err.Error()}
		}
		leaf := deepestCause(ve)
		field := strings.Join(leaf.InstanceLocation, ".")
		return &ValidationError{
			Field:   field,
			Value:   lookup(params, leaf.InstanceLocation),
			Message: lastMessage(err.Error()),
		}
	}

	return nil
}

func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// lastMessage extracts the innermost "- at '<loc>': <msg>" line of a
// jsonschema error rendering.
func lastMessage(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	line := strings.TrimSpace(lines[len(lines)-1])
	line = strings.TrimPrefix(line, "- ")
	if strings.HasPrefix(line, "at '") {
		if i := strings.Index(line, "': "); i >= 0 {
			line = line[i+3:]
		}
	}
	return line
}

func lookup(params map[string]any, path []string) any {
	var cur any = params
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	if len(path) == 0 {
		return nil
	}
	return cur
}

// CreateSchema creates a JSON schema from a Go struct using reflection.
// This is a convenience function for creating parameter schemas from Go types.
// Supported tags: json (name, omitempty), description and enum (comma separated).
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		fieldSchema := typeSchema(field.Type)

		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}

		if enum := field.Tag.Get("enum"); enum != "" {
			fieldSchema["enum"] = strings.Split(enum, ",")
		}

		properties[fieldName] = fieldSchema

		if !hasOmitEmpty(jsonTag) && !isPointer(field.Type) {
			required = append(required, fieldName)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func typeSchema(t reflect.Type) map[string]any {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s := map[string]any{"type": getJSONType(t)}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		s["items"] = typeSchema(t.Elem())
	case reflect.Struct:
		nested := CreateSchema(reflect.New(t).Elem().Interface())
		for k, v := range nested {
			s[k] = v
		}
	}
	return s
}

// getJSONType returns the JSON schema type for a given Go type.
func getJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return getJSONType(t.Elem())
	default:
		return "string"
	}
}

// hasOmitEmpty checks if a JSON tag has the "omitempty" option.
func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// isPointer checks if a type is a pointer.
func isPointer(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr
}
