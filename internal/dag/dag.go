// Package dag implements the directed graph of node names used to validate
// a pipeline's wiring and to derive its startup/shutdown order.
package dag

import (
	"fmt"
	"sort"

	"fluxgraph.dev/flux/internal/corerr"
)

// DAG is a directed graph over string-named nodes.
type DAG struct {
	nodes map[string]struct{}
	adj   map[string][]string // edges out of a node
	order []string            // insertion order, for deterministic layering
}

// New returns an empty graph.
func New() *DAG {
	return &DAG{
		nodes: make(map[string]struct{}),
		adj:   make(map[string][]string),
	}
}

// AddNode registers a node name. Adding the same name twice is a no-op.
func (g *DAG) AddNode(name string) {
	if _, ok := g.nodes[name]; ok {
		return
	}
	g.nodes[name] = struct{}{}
	g.order = append(g.order, name)
}

// AddEdge records a directed edge from -> to. Both endpoints must already
// be registered via AddNode.
func (g *DAG) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("%w: unknown node %q", corerr.ErrInvalidGraph, from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("%w: unknown node %q", corerr.ErrInvalidGraph, to)
	}
	g.adj[from] = append(g.adj[from], to)
	return nil
}

// HasCycle reports whether the graph contains a directed cycle, using
// Kahn's algorithm: repeatedly remove zero-in-degree nodes; a cycle exists
// iff some nodes remain unremovable.
func (g *DAG) HasCycle() bool {
	inDeg := make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		inDeg[n] = 0
	}
	for _, tos := range g.adj {
		for _, to := range tos {
			inDeg[to]++
		}
	}

	queue := make([]string, 0)
	for _, n := range g.order {
		if inDeg[n] == 0 {
			queue = append(queue, n)
		}
	}

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, to := range g.adj[n] {
			inDeg[to]--
			if inDeg[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	return visited != len(g.nodes)
}

// InDegree returns the number of edges pointing into name.
func (g *DAG) InDegree(name string) int {
	n := 0
	for _, tos := range g.adj {
		for _, to := range tos {
			if to == name {
				n++
			}
		}
	}
	return n
}

// OutDegree returns the number of edges pointing out of name.
func (g *DAG) OutDegree(name string) int {
	return len(g.adj[name])
}

// Layers returns the graph's nodes grouped into topological layers: layer 0
// holds every zero-in-degree node, layer 1 the nodes that become
// zero-in-degree once layer 0 is removed, and so on. Within a layer, nodes
// are ordered deterministically by name. Layers panics-free behaviour on a
// cyclic graph simply omits the nodes caught in the cycle; callers should
// check HasCycle first.
func (g *DAG) Layers() [][]string {
	inDeg := make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		inDeg[n] = 0
	}
	for _, tos := range g.adj {
		for _, to := range tos {
			inDeg[to]++
		}
	}

	remaining := make(map[string]struct{}, len(g.nodes))
	for n := range g.nodes {
		remaining[n] = struct{}{}
	}

	var layers [][]string
	for len(remaining) > 0 {
		var layer []string
		for n := range remaining {
			if inDeg[n] == 0 {
				layer = append(layer, n)
			}
		}
		if len(layer) == 0 {
			break // cycle; stop rather than loop forever
		}
		sort.Strings(layer)
		for _, n := range layer {
			delete(remaining, n)
			for _, to := range g.adj[n] {
				inDeg[to]--
			}
		}
		layers = append(layers, layer)
	}
	return layers
}

// Nodes returns the registered node names in insertion order.
func (g *DAG) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// AsMap renders the adjacency list as a plain map, keyed by node name.
func (g *DAG) AsMap() map[string][]string {
	out := make(map[string][]string, len(g.nodes))
	for _, n := range g.order {
		edges := append([]string(nil), g.adj[n]...)
		out[n] = edges
	}
	return out
}
