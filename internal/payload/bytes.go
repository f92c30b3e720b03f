package payload

import "encoding/base64"

// BytesPayload carries an opaque byte blob.
type BytesPayload struct {
	Content   []byte
	sizeBytes int64
}

func (b BytesPayload) SizeBytes() int64 { return b.sizeBytes }

func (b BytesPayload) Serialize() map[string]any {
	return map[string]any{
		"content":    base64.StdEncoding.EncodeToString(b.Content),
		"size_bytes": b.sizeBytes,
	}
}

// BytesDraft is the mutable builder for BytesPayload.
type BytesDraft struct {
	Content []byte
}

func NewBytesDraft() *BytesDraft { return &BytesDraft{} }

func (d *BytesDraft) CopyFrom(p BytesPayload) *BytesDraft {
	d.Content = append([]byte(nil), p.Content...)
	return d
}

func (d *BytesDraft) Compile() Payload {
	return BytesPayload{Content: d.Content, sizeBytes: int64(len(d.Content))}
}
