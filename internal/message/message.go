// Package message implements the envelope carried between nodes: a
// timestamped, versioned wrapper around a payload.Payload with free-form
// metadata and named timer regions. A Message is mutable until Freeze is
// called, after which every mutator returns corerr.ErrFrozenViolation.
package message

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"fluxgraph.dev/flux/internal/corerr"
	"fluxgraph.dev/flux/internal/payload"
)

// Message is the unit of data flow between nodes.
type Message struct {
	mu sync.Mutex

	createdAt    time.Time
	creator      string
	version      int64
	id           int64
	dataSourceID int64

	meta   map[string]any
	timers map[string]float64
	open   map[string]time.Time

	payload payload.Payload
	frozen  bool
}

// Option configures a Message at construction time.
type Option func(*Message)

// WithCreator sets the name of the node that produced the message.
func WithCreator(name string) Option {
	return func(m *Message) { m.creator = name }
}

// WithVersion overrides the default version (-1).
func WithVersion(v int64) Option {
	return func(m *Message) { m.version = v }
}

// WithID sets the message's identity, normally assigned by the creating
// node from a monotonic counter.
func WithID(id int64) Option {
	return func(m *Message) { m.id = id }
}

// WithPayload attaches the carried payload.
func WithPayload(p payload.Payload) Option {
	return func(m *Message) { m.payload = p }
}

// WithTimersFrom copies the timer readings of an existing message into the
// new one, establishing lineage across a node's ingest-to-emit path.
func WithTimersFrom(src *Message) Option {
	return func(m *Message) {
		if src == nil {
			return
		}
		src.mu.Lock()
		defer src.mu.Unlock()
		maps.Copy(m.timers, src.timers)
	}
}

// New constructs an unfrozen Message with createdAt set to now and version
// defaulted to -1.
func New(opts ...Option) *Message {
	m := &Message{
		createdAt: time.Now(),
		version:   -1,
		meta:      make(map[string]any),
		timers:    make(map[string]float64),
		open:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Message) CreatedAt() time.Time { return m.createdAt }
func (m *Message) Creator() string      { return m.creator }
func (m *Message) Version() int64       { return m.version }
func (m *Message) ID() int64            { return m.id }

func (m *Message) DataSourceID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dataSourceID
}

// Payload returns the carried payload, which may still be a payload.Draft
// until Freeze compiles it.
func (m *Message) Payload() payload.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payload
}

func (m *Message) IsFrozen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frozen
}

// StampDataSourceID records the id of the work unit whose processing
// produced this message. Called by a node immediately before
// transmit freezes the message; fails once frozen.
func (m *Message) StampDataSourceID(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return corerr.ErrFrozenViolation
	}
	m.dataSourceID = id
	return nil
}

// SetPayload replaces the carried payload. Fails once frozen.
func (m *Message) SetPayload(p payload.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return corerr.ErrFrozenViolation
	}
	m.payload = p
	return nil
}

// SetMeta attaches a metadata value under key. Fails once frozen.
func (m *Message) SetMeta(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return corerr.ErrFrozenViolation
	}
	m.meta[key] = value
	return nil
}

// Meta returns a metadata value.
func (m *Message) Meta(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.meta[key]
	return v, ok
}

// MetaMap returns a defensive copy of the metadata map. Once frozen, the
// underlying map itself is never mutated again, but callers still receive
// a copy so they cannot defeat that guarantee through an aliased map.
func (m *Message) MetaMap() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.meta))
	maps.Copy(out, m.meta)
	return out
}

// Timer records an instantaneous timer reading. Fails once frozen.
func (m *Message) Timer(name string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return corerr.ErrFrozenViolation
	}
	m.timers[name] = value
	return nil
}

// TimerValue returns a previously recorded timer reading.
func (m *Message) TimerValue(name string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.timers[name]
	return v, ok
}

// TimersMap returns a defensive copy of the recorded timers.
func (m *Message) TimersMap() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.timers))
	maps.Copy(out, m.timers)
	return out
}

// Begin opens a named timer region and returns a function that closes it,
// recording the elapsed seconds under name. Begin fails if the message is
// frozen or if a region with the same name is already open; the returned
// End function is idempotent past the first call.
func (m *Message) Begin(name string) (func() error, error) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return nil, corerr.ErrFrozenViolation
	}
	if _, open := m.open[name]; open {
		m.mu.Unlock()
		return nil, fmt.Errorf("flux: timer region %q already open", name)
	}
	m.open[name] = time.Now()
	m.mu.Unlock()

	closed := false
	end := func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if closed {
			return nil
		}
		closed = true
		started, ok := m.open[name]
		delete(m.open, name)
		if !ok {
			return nil
		}
		if m.frozen {
			return corerr.ErrFrozenViolation
		}
		m.timers[name] = time.Since(started).Seconds()
		return nil
	}
	return end, nil
}

// Freeze compiles any Draft payload into its immutable Payload, snapshots
// meta and timers against further mutation, and marks the message frozen.
// Freeze is idempotent.
func (m *Message) Freeze() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return
	}
	if d, ok := m.payload.(payload.Draft); ok {
		m.payload = d.Compile()
	}
	m.frozen = true
}

// ToDict renders the message as a plain map, following the same shape
// to_json serialises to.
func (m *Message) ToDict() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta := make(map[string]any, len(m.meta))
	maps.Copy(meta, m.meta)
	timers := make(map[string]float64, len(m.timers))
	maps.Copy(timers, m.timers)

	d := map[string]any{
		"created_at":     m.createdAt.Format(time.RFC3339Nano),
		"creator":        m.creator,
		"version":        m.version,
		"id":             m.id,
		"data_source_id": m.dataSourceID,
		"meta":           meta,
		"timers":         timers,
	}
	if m.payload != nil {
		d["payload"] = m.payload.Serialize()
	}
	return d
}

// Encoder produces a JSON-compatible representation of a payload when the
// payload itself cannot, or the caller wants a different projection.
type Encoder func(payload.Payload) (map[string]any, error)

// ToJSON serialises the message. The payload's own Serialize is used when
// present; encoder is a fallback for payloads that need special handling
// (e.g. large binary content the caller wants written elsewhere). Returns
// corerr.ErrUnserializable if neither is available.
func (m *Message) ToJSON(encoder Encoder, indent string) (string, error) {
	d := m.ToDict()

	if m.payload == nil && encoder == nil {
		return "", corerr.ErrUnserializable
	}
	if m.payload != nil {
		if _, ok := d["payload"]; !ok {
			return "", corerr.ErrUnserializable
		}
	} else if encoder != nil {
		encoded, err := encoder(nil)
		if err != nil {
			return "", fmt.Errorf("%w: %v", corerr.ErrUnserializable, err)
		}
		d["payload"] = encoded
	}

	var (
		out []byte
		err error
	)
	if indent != "" {
		out, err = json.MarshalIndent(d, "", indent)
	} else {
		out, err = json.Marshal(d)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", corerr.ErrUnserializable, err)
	}
	return string(out), nil
}
