package message

import "fluxgraph.dev/flux/internal/payload"

// Batch carries an ordered group of messages consumed together off a
// buffer, e.g. when a synchroniser selects more than one pending message
// from a single origin in a single pass. Batch implements payload.Payload
// so it can travel as the payload of an outer Message without payload
// needing to import message back.
type Batch struct {
	Messages  []*Message
	sizeBytes int64
}

// NewBatch groups msgs into a Batch, summing their payload sizes.
func NewBatch(msgs []*Message) Batch {
	b := Batch{Messages: msgs}
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if p := msg.Payload(); p != nil {
			b.sizeBytes += p.SizeBytes()
		}
	}
	return b
}

func (b Batch) SizeBytes() int64 { return b.sizeBytes }

func (b Batch) Serialize() map[string]any {
	items := make([]map[string]any, 0, len(b.Messages))
	for _, msg := range b.Messages {
		if msg == nil {
			continue
		}
		items = append(items, msg.ToDict())
	}
	return map[string]any{
		"size_bytes": b.sizeBytes,
		"count":      len(b.Messages),
		"messages":   items,
	}
}

var _ payload.Payload = Batch{}
