package component

import (
	"sync"

	"fluxgraph.dev/flux/internal/message"
	"fluxgraph.dev/flux/internal/node"
)

// buildPassthrough is a trivial proc node: it forwards every work unit
// unchanged to its destinations, useful for tests and as documentation of
// the Factory shape.
func buildPassthrough(spec NodeSpec, _ []string, _ string) (*node.Node, error) {
	n := node.New(spec.Name,
		node.WithSynchroniser(ResolveSynchroniser(spec.Sync)),
		node.WithTypes("any", "any"),
		node.WithUpdate(func(owner *node.Node, work *message.Message) error {
			owner.Transmit(work)
			return nil
		}),
	)
	return n, nil
}

// Sink is a collecting sink node: its update function appends every work
// unit it receives, guarded by a mutex since update runs on its own
// goroutine. Tests and examples use it as the terminal node of a pipeline.
type Sink struct {
	mu   sync.Mutex
	msgs []*message.Message
}

// Messages returns a snapshot of everything the sink has collected so far.
func (s *Sink) Messages() []*message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*message.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *Sink) update(_ *node.Node, work *message.Message) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, work)
	s.mu.Unlock()
	return nil
}

// buildSink constructs a sink node backed by a fresh Sink collector,
// reachable afterwards only via the node's Configuration-free design —
// callers that need the Sink itself should use NewSinkNode directly
// instead of going through the mark-keyed registry.
func buildSink(spec NodeSpec, _ []string, _ string) (*node.Node, error) {
	n, _ := NewSinkNode(spec.Name)
	return n, nil
}

// NewSinkNode constructs a named sink node and returns both it and its
// backing Sink collector, so callers can inspect what it received.
func NewSinkNode(name string) (*node.Node, *Sink) {
	s := &Sink{}
	n := node.New(name, node.WithUpdate(s.update))
	return n, s
}
