// Package buffer implements a node's inbound staging area: a per-creator
// set of pending messages that a synchroniser repeatedly reduces into work
// units landing on a bounded output channel.
package buffer

import (
	"sync"

	"fluxgraph.dev/flux/internal/message"
	"fluxgraph.dev/flux/internal/synchroniser"
)

// DefaultCapacity is the default output-channel capacity, matching the
// process-wide default used for node inbound queues.
const DefaultCapacity = 1000

// WorkUnit is what Get returns: either a single message or a Batch wrapping
// several, or nil to signal end-of-stream.
type WorkUnit = *message.Message

// Buffer stages inbound messages per creator and emits synchronised work
// units on a bounded channel. A Buffer is owned by exactly one node; Put
// may be called concurrently by several upstream senders, serialised by mu.
type Buffer struct {
	mu      sync.Mutex
	pending map[string][]*message.Message
	order   []string // creator names in first-seen order, for deterministic consume
	sync    synchroniser.Synchroniser

	out chan WorkUnit
}

// New constructs a Buffer with the given synchroniser (Passthrough if nil)
// and output channel capacity (DefaultCapacity if capacity <= 0).
func New(sync synchroniser.Synchroniser, capacity int) *Buffer {
	if sync == nil {
		sync = synchroniser.Passthrough
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		pending: make(map[string][]*message.Message),
		sync:    sync,
		out:     make(chan WorkUnit, capacity),
	}
}

// Put appends msg under its creator, runs the synchroniser, consumes any
// marked messages into a work unit, and pushes that unit onto the output
// channel. Put(nil) pushes nil directly, signalling end-of-stream to Get,
// without touching the pending sets.
//
// The append/synchronise/consume sequence runs under mu, but the final
// channel send happens after mu is released: holding the buffer's single
// mutex across a potentially-blocking bounded-channel send would let one
// slow consumer wedge every other producer calling Put concurrently, which
// the per-creator ordering guarantee does not require.
func (b *Buffer) Put(msg *message.Message) {
	if msg == nil {
		b.out <- nil
		return
	}

	unit := b.appendAndConsume(msg)
	if unit != nil {
		b.out <- unit
	}
}

func (b *Buffer) appendAndConsume(msg *message.Message) *message.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	creator := msg.Creator()
	if _, seen := b.pending[creator]; !seen {
		b.order = append(b.order, creator)
	}
	b.pending[creator] = append(b.pending[creator], msg)

	marks := b.sync(b.snapshotLocked())
	consumed := b.consumeLocked(marks)
	if len(consumed) == 0 {
		return nil
	}
	if len(consumed) == 1 {
		return consumed[0]
	}

	batch := message.NewBatch(consumed)
	return message.New(
		message.WithCreator("__batch__"),
		message.WithID(consumed[0].ID()),
		message.WithPayload(batch),
	)
}

// snapshotLocked returns the current pending sets. Callers must hold mu.
// The synchroniser contract forbids mutating its argument, so a shallow
// copy of the per-creator slices is sufficient; slice headers are copied,
// backing arrays are not mutated by consumeLocked until after the call.
func (b *Buffer) snapshotLocked() map[string][]*message.Message {
	out := make(map[string][]*message.Message, len(b.pending))
	for k, v := range b.pending {
		cp := make([]*message.Message, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// consumeLocked removes the indices marks selects from each creator's
// pending list, preserving per-creator order, and returns the removed
// messages concatenated in creator first-seen order (b.order) — never by
// ranging marks directly, since Go map iteration order is randomized and
// marks may name more than one creator in a single pass. Callers must hold
// mu.
func (b *Buffer) consumeLocked(marks map[string][]int) []*message.Message {
	var consumed []*message.Message

	for _, creator := range b.order {
		idxs, ok := marks[creator]
		if !ok || len(idxs) == 0 {
			continue
		}
		pending := b.pending[creator]
		remove := make(map[int]struct{}, len(idxs))
		for _, i := range idxs {
			if i >= 0 && i < len(pending) {
				remove[i] = struct{}{}
			}
		}

		var kept []*message.Message
		for i, m := range pending {
			if _, marked := remove[i]; marked {
				consumed = append(consumed, m)
			} else {
				kept = append(kept, m)
			}
		}
		b.pending[creator] = kept
	}

	return consumed
}

// Get blocks until a work unit, or nil signalling end-of-stream, is
// available.
func (b *Buffer) Get() WorkUnit {
	return <-b.out
}

// TryGet returns a queued work unit without blocking. ok is false if none
// is currently available.
func (b *Buffer) TryGet() (unit WorkUnit, ok bool) {
	select {
	case unit = <-b.out:
		return unit, true
	default:
		return nil, false
	}
}

// Flush atomically discards all pending messages and all queued work
// units.
func (b *Buffer) Flush() {
	b.mu.Lock()
	b.pending = make(map[string][]*message.Message)
	b.order = nil
	b.mu.Unlock()

	for {
		select {
		case <-b.out:
		default:
			return
		}
	}
}
