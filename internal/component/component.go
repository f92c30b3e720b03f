// Package component implements the external component-builder contract:
// turning a pipeline's declarative NodeSpec into a concrete *node.Node.
// The core depends only on the Builder interface; which concrete node
// types exist is opaque to it (spec'd as an external collaborator), but a
// small in-core Registry and a couple of trivial factories are provided so
// the core is independently testable without a full plugin ecosystem.
package component

import (
	"fmt"
	"sort"
	"sync"

	"fluxgraph.dev/flux/internal/corerr"
	"fluxgraph.dev/flux/internal/node"
	"fluxgraph.dev/flux/internal/synchroniser"
)

// NodeSpec is the declarative description of one pipeline node, as it
// appears in pipeline JSON.
type NodeSpec struct {
	Name          string         `json:"name"`
	Type          string         `json:"type"` // "source" | "proc" | "sink"
	Mark          string         `json:"mark"` // plugin key resolved by the builder
	Sync          string         `json:"sync,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// Builder resolves a NodeSpec into a concrete node, given the plugin
// search directories and the owning pipeline's name. Its interface is
// opaque to the core: discovery, local-config defaults, environment
// substitution, and synchroniser selection are all builder concerns.
type Builder interface {
	Build(spec NodeSpec, pluginDirs []string, pipelineName string) (*node.Node, error)
}

// Factory constructs a node from a spec; Registry dispatches to one by
// spec.Mark.
type Factory func(spec NodeSpec, pluginDirs []string, pipelineName string) (*node.Node, error)

// Registry is a name -> Factory map, the in-core Builder implementation.
// Mutex-guarded so factories may be registered concurrently with builds,
// mirroring the teacher's plugin registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a Registry pre-populated with the built-in
// "passthrough" and "sink" factories.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("passthrough", buildPassthrough)
	r.Register("sink", buildSink)
	return r
}

// Register adds or replaces the factory for mark.
func (r *Registry) Register(mark string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[mark] = f
}

// Marks lists the registered factory keys, sorted for deterministic
// iteration.
func (r *Registry) Marks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for m := range r.factories {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Build resolves spec.Mark to a factory and invokes it.
func (r *Registry) Build(spec NodeSpec, pluginDirs []string, pipelineName string) (*node.Node, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Mark]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no factory registered for mark %q", corerr.ErrPluginLoad, spec.Mark)
	}
	return f(spec, pluginDirs, pipelineName)
}

// ResolveSynchroniser looks up a spec's declared synchroniser name in the
// well-known registry, defaulting to Passthrough when unset or unknown.
func ResolveSynchroniser(name string) synchroniser.Synchroniser {
	if name == "" {
		return synchroniser.Passthrough
	}
	if s, ok := synchroniser.Registry[name]; ok {
		return s
	}
	return synchroniser.Passthrough
}

