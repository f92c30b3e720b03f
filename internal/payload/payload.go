// Package payload implements the tagged payload variants carried by a
// message envelope. Every variant is immutable once constructed; the sum
// type is realised as a plain interface over value types rather than by
// subclassing, per the teacher's preference for composition over
// inheritance in its tagged-union modules.
package payload

// Payload is implemented by every concrete payload variant. size_bytes
// feeds telemetry; Serialize produces a JSON-compatible representation.
// Variants live both in this package (Audio/Image/Video/Bytes/Object/
// Control) and in package message (Batch), which needs Payload without
// importing back into this package.
type Payload interface {
	SizeBytes() int64
	Serialize() map[string]any
}

// Draft is a mutable builder for a target payload type. A message whose
// payload is still a Draft compiles it into the immutable Payload on
// freeze.
type Draft interface {
	Compile() Payload
}

// Every draft also satisfies Payload, so it can be attached to a message
// before freeze; its size and serialized form are those of the payload it
// would compile to.
func (d *AudioDraft) SizeBytes() int64          { return d.Compile().SizeBytes() }
func (d *AudioDraft) Serialize() map[string]any { return d.Compile().Serialize() }
func (d *BytesDraft) SizeBytes() int64          { return d.Compile().SizeBytes() }
func (d *BytesDraft) Serialize() map[string]any { return d.Compile().Serialize() }
func (d *ImageDraft) SizeBytes() int64          { return d.Compile().SizeBytes() }
func (d *ImageDraft) Serialize() map[string]any { return d.Compile().Serialize() }
func (d *VideoDraft) SizeBytes() int64          { return d.Compile().SizeBytes() }
func (d *VideoDraft) Serialize() map[string]any { return d.Compile().Serialize() }
