// Package pipeline builds a DAG of nodes from a declarative Config, and
// drives their lifecycle as a unit: warmup, start/stop in topological
// order, suspend/resume, and destroy.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"fluxgraph.dev/flux/internal/component"
	"fluxgraph.dev/flux/internal/corerr"
	"fluxgraph.dev/flux/internal/dag"
	"fluxgraph.dev/flux/internal/message"
	"fluxgraph.dev/flux/internal/node"
	"fluxgraph.dev/flux/internal/payload"
	"fluxgraph.dev/flux/internal/telemetry"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
)

// Pipeline owns a set of nodes wired into a DAG and their shared lifecycle.
type Pipeline struct {
	mu     sync.RWMutex
	config Config
	status Status

	graph    *dag.DAG
	nodes    map[string]*node.Node
	order    []string // insertion order, for Stop/Destroy
	specByID map[string]component.NodeSpec

	builder    component.Builder
	pluginDirs []string
	recorder   telemetry.Recorder
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithBuilder overrides the default component.Registry-backed builder.
func WithBuilder(b component.Builder) Option {
	return func(p *Pipeline) { p.builder = b }
}

// WithTelemetryRecorder attaches a recorder every built node will report
// rx/tx batches to.
func WithTelemetryRecorder(rec telemetry.Recorder) Option {
	return func(p *Pipeline) { p.recorder = rec }
}

// New constructs a Pipeline in status NEW from cfg. A default
// component.Registry is used unless WithBuilder overrides it.
func New(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		config:   cfg,
		status:   StatusNew,
		graph:    dag.New(),
		nodes:    make(map[string]*node.Node),
		specByID: make(map[string]component.NodeSpec),
		builder:  component.NewRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID, Name, Folder mirror the persisted config's identity fields.
func (p *Pipeline) ID() string     { return p.config.Pipeline.ID }
func (p *Pipeline) Name() string   { return p.config.Pipeline.Name }
func (p *Pipeline) Folder() string { return p.config.Pipeline.Folder }

// Status returns the pipeline's current lifecycle status.
func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Warmup creates the pipeline's working directory, persists config.json,
// builds every node, wires every link into the DAG, and runs each node's
// user-defined Warmup hook. Requires status == NEW.
func (p *Pipeline) Warmup() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusNew {
		return fmt.Errorf("%w: warmup requires NEW, have %s", corerr.ErrInvalidLifecycle, p.status)
	}

	folder := p.config.Pipeline.Folder
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("pipeline %s: create folder: %w", p.Name(), err)
	}

	raw, err := json.MarshalIndent(p.config, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline %s: marshal config: %w", p.Name(), err)
	}
	configPath := filepath.Join(folder, "config.json")
	if err := os.WriteFile(configPath, raw, 0o644); err != nil {
		return fmt.Errorf("pipeline %s: write config.json: %w", p.Name(), err)
	}

	if err := p.buildNodes(); err != nil {
		p.cleanupPastConfig(folder)
		return err
	}

	if err := p.wireLinks(); err != nil {
		p.cleanupPastConfig(folder)
		return err
	}

	if err := p.checkGraphInvariants(); err != nil {
		p.cleanupPastConfig(folder)
		return err
	}

	for _, name := range p.order {
		if err := p.nodes[name].Warmup(); err != nil {
			return fmt.Errorf("pipeline %s: node %q warmup: %w", p.Name(), name, err)
		}
	}

	p.status = StatusReady
	slog.Info("pipeline warmed up", "pipeline", p.Name(), "id", p.ID(), "nodes", len(p.order))
	return nil
}

func (p *Pipeline) buildNodes() error {
	for _, spec := range p.config.Pipeline.Nodes {
		if _, exists := p.nodes[spec.Name]; exists {
			return fmt.Errorf("%w: duplicate node name %q", corerr.ErrInvalidGraph, spec.Name)
		}

		nodeDir := filepath.Join(p.Folder(), spec.Name)
		if err := os.MkdirAll(nodeDir, 0o755); err != nil {
			return fmt.Errorf("pipeline %s: create node dir %q: %w", p.Name(), spec.Name, err)
		}

		n, err := p.builder.Build(spec, p.config.Plugins, p.Name())
		if err != nil {
			return fmt.Errorf("%w: node %q: %v", corerr.ErrPluginLoad, spec.Name, err)
		}
		n.SetWorkDir(nodeDir)
		if p.recorder != nil {
			n.SetRecorder(p.recorder)
		}

		p.nodes[spec.Name] = n
		p.specByID[spec.Name] = spec
		p.order = append(p.order, spec.Name)
		p.graph.AddNode(spec.Name)
	}
	return nil
}

func (p *Pipeline) wireLinks() error {
	for _, link := range p.config.Pipeline.Links {
		from, ok := p.nodes[link.From]
		if !ok {
			return fmt.Errorf("%w: link references unknown node %q", corerr.ErrInvalidGraph, link.From)
		}
		to, ok := p.nodes[link.To]
		if !ok {
			return fmt.Errorf("%w: link references unknown node %q", corerr.ErrInvalidGraph, link.To)
		}
		if err := p.graph.AddEdge(link.From, link.To); err != nil {
			return err
		}
		from.AddDestination(link.To, to)
	}
	return nil
}

// checkGraphInvariants enforces I3 (no cycle) and I4 (every non-source node
// has at least one inbound edge). I1 (duplicate names) and I2 (unknown
// edge endpoints) are enforced earlier, in buildNodes/wireLinks.
func (p *Pipeline) checkGraphInvariants() error {
	if p.graph.HasCycle() {
		return fmt.Errorf("%w: cycle detected", corerr.ErrInvalidGraph)
	}
	for _, name := range p.order {
		spec := p.specByID[name]
		if spec.Type == "source" {
			continue
		}
		if p.graph.InDegree(name) == 0 {
			return fmt.Errorf("%w: non-source node %q has no inbound edge", corerr.ErrInvalidGraph, name)
		}
	}
	return nil
}

// cleanupPastConfig removes every node working directory created during a
// failed warmup, leaving only folder/config.json behind.
func (p *Pipeline) cleanupPastConfig(folder string) {
	for name := range p.nodes {
		_ = os.RemoveAll(filepath.Join(folder, name))
	}
}

// Start computes topological layers and starts nodes layer-by-layer in
// reverse order (sinks first, sources last). Requires status == READY.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusReady {
		return fmt.Errorf("%w: start requires READY, have %s", corerr.ErrInvalidLifecycle, p.status)
	}

	layers := p.graph.Layers()
	for i := len(layers) - 1; i >= 0; i-- {
		var wg conc.WaitGroup
		for _, name := range layers[i] {
			n := p.nodes[name]
			wg.Go(func() { n.Start() })
		}
		wg.Wait()
	}

	p.status = StatusRunning
	slog.Info("pipeline started", "pipeline", p.Name(), "id", p.ID())
	return nil
}

// Stop calls Stop on every node in insertion order. Requires status ==
// RUNNING.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusRunning {
		return fmt.Errorf("%w: stop requires RUNNING, have %s", corerr.ErrInvalidLifecycle, p.status)
	}

	for _, name := range p.order {
		p.nodes[name].Stop()
	}

	p.status = StatusReady
	slog.Info("pipeline stopped", "pipeline", p.Name(), "id", p.ID())
	return nil
}

// SuspendNode delivers a SUSPEND control signal to the named node's
// inbound queue. No-op if name is unknown.
func (p *Pipeline) SuspendNode(name string) {
	p.deliverControl(name, payload.Suspend)
}

// ResumeNode delivers a RESUME control signal to the named node's inbound
// queue. No-op if name is unknown.
func (p *Pipeline) ResumeNode(name string) {
	p.deliverControl(name, payload.Resume)
}

func (p *Pipeline) deliverControl(name string, signal payload.ControlSignal) {
	p.mu.RLock()
	n, ok := p.nodes[name]
	p.mu.RUnlock()
	if !ok {
		return
	}
	n.Put(message.New(
		message.WithCreator("pipeline"),
		message.WithPayload(payload.ControlPayload{Signal: signal}),
	))
}

// UpdateNode calls the named node's user-defined SetOnConfig hook. No-op
// if name is unknown.
func (p *Pipeline) UpdateNode(name, property string, value any) error {
	p.mu.RLock()
	n, ok := p.nodes[name]
	p.mu.RUnlock()
	if !ok {
		return nil
	}
	return n.SetOnConfig(property, value)
}

// Destroy stops the pipeline if running, then in reverse insertion order
// clears each node's source and destinations, calls its Destroy hook, and
// drops the reference. The on-disk working directory is left intact.
// Per-node destroy failures are aggregated and all returned together
// rather than abandoned after the first one, since shutdown must still
// proceed through every node.
func (p *Pipeline) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == StatusRunning {
		for _, name := range p.order {
			p.nodes[name].Stop()
		}
	}

	var errs error
	for i := len(p.order) - 1; i >= 0; i-- {
		name := p.order[i]
		n := p.nodes[name]
		n.ClearSource()
		n.ClearDestinations()
		if err := n.Destroy(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("node %q: %w", name, err))
		}
		delete(p.nodes, name)
	}
	p.order = nil

	if errs != nil {
		slog.Error("pipeline destroy had node failures", "pipeline", p.Name(), "error", errs)
	}
	return errs
}

// StatusReport returns a snapshot of the pipeline and every node's status.
func (p *Pipeline) StatusReport() StatusReport {
	p.mu.RLock()
	defer p.mu.RUnlock()

	nodes := make(map[string]NodeStatus, len(p.order))
	for _, name := range p.order {
		n := p.nodes[name]
		nodes[name] = NodeStatus{
			Status:        n.Status().String(),
			Configuration: p.specByID[name].Configuration,
		}
	}

	return StatusReport{
		ID:     p.ID(),
		Name:   p.Name(),
		Status: p.status.String(),
		Nodes:  nodes,
	}
}
