package tool

import (
	"fmt"
	"sort"
)

// Registry is an immutable dispatch table keyed by tool name. It is built
// once at startup and shared read-only by every run.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry from tools. Names must be unique and non-empty.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("registry: nil tool")
		}
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("registry: tool with empty name")
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("registry: duplicate tool %q", name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// SortedNames returns tool names sorted lexically, useful for stable logging.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
