package agent

import (
	"context"
	"fmt"
	"slices"

	"mdtoml/internal/llm"
)

// Tool pairs the descriptor advertised to the model with the function that
// runs when the model asks for it.
type Tool interface {
	Name() string
	Descriptor() llm.ToolDescriptor
	Execute(ctx context.Context, input map[string]any) (any, error)
}

// Registry is an immutable name → Tool table built once at startup.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry fails on a nil tool, an invalid descriptor, a name that does not
// match its descriptor, or a duplicate name.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("tool is nil")
		}
		desc := t.Descriptor()
		if err := desc.Validate(); err != nil {
			return nil, err
		}
		if desc.Name != t.Name() {
			return nil, fmt.Errorf("tool %s advertises descriptor %s", t.Name(), desc.Name)
		}
		if _, exists := r.tools[desc.Name]; exists {
			return nil, fmt.Errorf("tool %s already registered", desc.Name)
		}
		r.tools[desc.Name] = t
		r.order = append(r.order, desc.Name)
	}
	return r, nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Len() int { return len(r.order) }

// Names returns the registered tool names sorted.
func (r *Registry) Names() []string {
	names := slices.Clone(r.order)
	slices.Sort(names)
	return names
}

// Descriptors returns the descriptors in registration order.
func (r *Registry) Descriptors() []llm.ToolDescriptor {
	out := make([]llm.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor())
	}
	return out
}

// Scope returns a registry restricted to the given names. An empty list
// returns r itself; unknown names are ignored.
func (r *Registry) Scope(names []string) *Registry {
	if len(names) == 0 {
		return r
	}
	scoped := &Registry{tools: make(map[string]Tool, len(names))}
	for _, name := range r.order {
		if slices.Contains(names, name) {
			scoped.tools[name] = r.tools[name]
			scoped.order = append(scoped.order, name)
		}
	}
	return scoped
}
