// Package corerr defines the sentinel error taxonomy shared by the dataflow
// core. Callers compare with errors.Is; wrapped errors carry the offending
// name or id via %w.
package corerr

import "errors"

var (
	// ErrInvalidGraph: unknown edge endpoint, duplicate node, cycle, or a
	// non-source node without any inbound edge.
	ErrInvalidGraph = errors.New("flux: invalid graph")

	// ErrInvalidLifecycle: an operation was attempted from a status that
	// does not permit it (warmup when not NEW, start when not READY, ...).
	ErrInvalidLifecycle = errors.New("flux: invalid lifecycle transition")

	// ErrInvalidID: operation referenced an unknown pipeline id.
	ErrInvalidID = errors.New("flux: invalid pipeline id")

	// ErrDuplicateState: the requested transition is redundant (already
	// warmed up, already running, ...).
	ErrDuplicateState = errors.New("flux: duplicate state transition")

	// ErrFrozenViolation: a mutation was attempted on a frozen message.
	ErrFrozenViolation = errors.New("flux: frozen message cannot be modified")

	// ErrUnserializable: no serializer is available for a payload.
	ErrUnserializable = errors.New("flux: payload has no serializer")

	// ErrPluginLoad: the external component builder could not resolve a
	// plugin referenced by a node spec.
	ErrPluginLoad = errors.New("flux: plugin load failed")

	// ErrResourceUnavailable: the resource broker could not satisfy a
	// request.
	ErrResourceUnavailable = errors.New("flux: resource unavailable")
)
