package engine

import (
	"fmt"
	"sort"
)

// Factory builds a workflow definition. Factories close over their
// dependencies (completion client, workflow settings) at registration
// time.
type Factory func() (Definition, error)

// Registry maps workflow names to definition factories.
type Registry struct{ workflows map[string]Factory }

// NewRegistry returns an empty workflow registry.
func NewRegistry() *Registry { return &Registry{workflows: map[string]Factory{}} }

// Register adds a workflow factory under name.
func (r *Registry) Register(name string, factory Factory) { r.workflows[name] = factory }

// Names returns the registered workflow names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.workflows))
	for name := range r.workflows {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Create builds the definition registered under name.
func (r *Registry) Create(name string) (Definition, error) {
	factory, ok := r.workflows[name]
	if !ok {
		return Definition{}, fmt.Errorf("unknown workflow %q", name)
	}
	return factory()
}
