package payload_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxgraph.dev/flux/internal/payload"
)

func TestAudioDraftCompileRoundTrip(t *testing.T) {
	src := payload.AudioPayload{}
	draft := payload.NewAudioDraft()
	draft.CopyFrom(payload.AudioPayload{
		Samples:      []float32{1, 2, 3, 4},
		SamplingRate: 16000,
		Channels:     1,
		AudioFormat:  "f32",
		Start:        0,
		End:          0.25,
	})
	compiled := draft.Compile()
	ap, ok := compiled.(payload.AudioPayload)
	require.True(t, ok)
	assert.Equal(t, int64(16), ap.SizeBytes())
	assert.Equal(t, 16000, ap.SamplingRate)
	_ = src
}

func TestObjectPayloadIsDefensivelyCopied(t *testing.T) {
	src := map[string]any{"a": 1}
	obj := payload.NewObjectPayload(src)
	src["a"] = 2

	v, ok := obj.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	out := obj.Serialize()
	out["a"] = 999
	v2, _ := obj.Get("a")
	assert.Equal(t, 1, v2)
}

func TestControlSignalIsStop(t *testing.T) {
	assert.True(t, payload.StopPropagate.IsStop())
	assert.True(t, payload.Stop.IsStop())
	assert.False(t, payload.Start.IsStop())
	assert.False(t, payload.StartPropagate.IsStop())
	assert.Equal(t, "SUSPEND", payload.Suspend.String())
}

func TestBytesPayloadSerializeEncodesBase64(t *testing.T) {
	d := payload.NewBytesDraft()
	d.Content = []byte("hi")
	compiled := d.Compile()
	out := compiled.Serialize()
	assert.Equal(t, "aGk=", out["content"])
}

func TestVideoDraftSizeSumsFrames(t *testing.T) {
	d := payload.NewVideoDraft()
	d.Frames = []payload.ImagePayload{
		payload.NewImageDraft().CopyFrom(payload.ImagePayload{Pixels: []byte{1, 2, 3}}).Compile().(payload.ImagePayload),
		payload.NewImageDraft().CopyFrom(payload.ImagePayload{Pixels: []byte{1, 2}}).Compile().(payload.ImagePayload),
	}
	compiled := d.Compile().(payload.VideoPayload)
	assert.Equal(t, int64(5), compiled.SizeBytes())
}
