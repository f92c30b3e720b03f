// Package resource implements the opaque, keyed allocator nodes use to
// obtain scarce external resources (ports, GPUs, …) without the core
// knowing their semantics.
package resource

import (
	"fmt"
	"net"

	"fluxgraph.dev/flux/internal/corerr"
)

// Allocator resolves a single resource request.
type Allocator func(args any) (any, error)

// Broker is a keyed allocator registry. The zero value is not usable; use
// NewBroker.
type Broker struct {
	allocators map[string]Allocator
}

// NewBroker returns a Broker pre-registered with the built-in "port"
// allocator.
func NewBroker() *Broker {
	b := &Broker{allocators: make(map[string]Allocator)}
	b.Register("port", allocatePort)
	return b
}

// Register adds or replaces the allocator for name.
func (b *Broker) Register(name string, fn Allocator) {
	b.allocators[name] = fn
}

// Get resolves a resource request by name.
func (b *Broker) Get(resource string, args any) (any, error) {
	fn, ok := b.allocators[resource]
	if !ok {
		return nil, fmt.Errorf("%w: no allocator for %q", corerr.ErrResourceUnavailable, resource)
	}
	v, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corerr.ErrResourceUnavailable, err)
	}
	return v, nil
}

// Resources lists the registered allocator names.
func (b *Broker) Resources() []string {
	out := make([]string, 0, len(b.allocators))
	for name := range b.allocators {
		out = append(out, name)
	}
	return out
}

// allocatePort binds an ephemeral TCP port to discover a free one, then
// releases it immediately. There is an inherent, accepted race between
// release and the caller actually using the port.
func allocatePort(_ any) (any, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	return port, nil
}
