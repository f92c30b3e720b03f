// Package synchroniser implements the pure functions a Buffer uses to
// decide, given the pending messages per origin, which of them to consume
// together into the next batch.
package synchroniser

import "fluxgraph.dev/flux/internal/message"

// Synchroniser selects, for each origin in sources, the indices of the
// pending messages that should be consumed together. It must not mutate
// its argument.
type Synchroniser func(sources map[string][]*message.Message) map[string][]int

// Passthrough is the default synchroniser: it selects every pending
// message from every origin, in arrival order.
func Passthrough(sources map[string][]*message.Message) map[string][]int {
	out := make(map[string][]int, len(sources))
	for origin, pending := range sources {
		idx := make([]int, len(pending))
		for i := range pending {
			idx[i] = i
		}
		out[origin] = idx
	}
	return out
}

// Latest selects only the most recently arrived message per origin,
// discarding the rest. Useful for nodes that only care about the freshest
// sample from a high-rate source (e.g. a live preview sink).
func Latest(sources map[string][]*message.Message) map[string][]int {
	out := make(map[string][]int, len(sources))
	for origin, pending := range sources {
		if len(pending) == 0 {
			out[origin] = nil
			continue
		}
		out[origin] = []int{len(pending) - 1}
	}
	return out
}

// Registry maps well-known synchroniser names to implementations, mirroring
// the name -> factory convention used elsewhere for pluggable components.
var Registry = map[string]Synchroniser{
	"passthrough": Synchroniser(Passthrough),
	"latest":      Synchroniser(Latest),
}
