package payload

import "maps"

// ObjectPayload is an immutable string-keyed mapping. It is populated only
// at construction time; no setter is exposed, so assignment after
// construction is a compile-time impossibility rather than a runtime check.
type ObjectPayload struct {
	data      map[string]any
	sizeBytes int64
}

// NewObjectPayload copies values into a new immutable ObjectPayload. The
// caller's map may be freely mutated afterwards without affecting the
// payload.
func NewObjectPayload(values map[string]any) ObjectPayload {
	cp := make(map[string]any, len(values))
	maps.Copy(cp, values)

	return ObjectPayload{data: cp, sizeBytes: int64(estimateSize(cp))}
}

// Get returns the value stored under key, if any.
func (o ObjectPayload) Get(key string) (any, bool) {
	v, ok := o.data[key]
	return v, ok
}

// Keys returns the payload's keys in unspecified order.
func (o ObjectPayload) Keys() []string {
	keys := make([]string, 0, len(o.data))
	for k := range o.data {
		keys = append(keys, k)
	}
	return keys
}

func (o ObjectPayload) SizeBytes() int64 { return o.sizeBytes }

func (o ObjectPayload) Serialize() map[string]any {
	out := make(map[string]any, len(o.data))
	maps.Copy(out, o.data)
	return out
}

func estimateSize(m map[string]any) int {
	n := 0
	for k, v := range m {
		n += len(k)
		if s, ok := v.(string); ok {
			n += len(s)
		} else {
			n += 8
		}
	}
	return n
}
