package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxgraph.dev/flux/internal/buffer"
	"fluxgraph.dev/flux/internal/message"
	"fluxgraph.dev/flux/internal/payload"
)

func withPayload(creator string, id int64) *message.Message {
	d := payload.NewBytesDraft()
	d.Content = []byte("x")
	return message.New(message.WithCreator(creator), message.WithID(id), message.WithPayload(d))
}

func TestPassthroughEmitsEachMessageDirectly(t *testing.T) {
	b := buffer.New(nil, 4)

	b.Put(withPayload("src", 0))
	unit := b.Get()
	require.NotNil(t, unit)
	assert.Equal(t, "src", unit.Creator())

	_, isBatch := unit.Payload().(message.Batch)
	assert.False(t, isBatch)
}

func TestPutNilSignalsEndOfStream(t *testing.T) {
	b := buffer.New(nil, 4)
	b.Put(nil)
	assert.Nil(t, b.Get())
}

// joinOnAB waits until one message from each of A and B are pending before
// marking both for consumption, mirroring a node-local "wait for N sources"
// synchroniser.
func joinOnAB(sources map[string][]*message.Message) map[string][]int {
	a, hasA := sources["A"]
	bb, hasB := sources["B"]
	if !hasA || !hasB || len(a) == 0 || len(bb) == 0 {
		return nil
	}
	return map[string][]int{"A": {0}, "B": {0}}
}

// TestMultiInputSynchroniserEmitsBatchOnceBothArrive exercises seed
// scenario 3: A and B messages use distinct, order-revealing ids (instead
// of both sides sharing the same id) so the assertions can actually catch
// a wrong ordering rather than passing no matter which side landed where.
// Looped to surface map-iteration-order nondeterminism in consumeLocked.
func TestMultiInputSynchroniserEmitsBatchOnceBothArrive(t *testing.T) {
	for i := 0; i < 50; i++ {
		b := buffer.New(joinOnAB, 4)

		b.Put(withPayload("A", 100)) // A1 pending, nothing emitted yet
		b.Put(withPayload("A", 101)) // A2 also pending, still nothing (no B)
		b.Put(withPayload("B", 200)) // B1 arrives -> should emit {A1, B1}

		unit := b.Get()
		require.NotNil(t, unit)
		batch, ok := unit.Payload().(message.Batch)
		require.True(t, ok)
		require.Len(t, batch.Messages, 2)
		assert.Equal(t, "A", batch.Messages[0].Creator())
		assert.Equal(t, int64(100), batch.Messages[0].ID())
		assert.Equal(t, "B", batch.Messages[1].Creator())
		assert.Equal(t, int64(200), batch.Messages[1].ID())

		b.Put(withPayload("B", 201)) // B2 arrives -> should emit {A2, B2}
		unit2 := b.Get()
		require.NotNil(t, unit2)
		batch2, ok := unit2.Payload().(message.Batch)
		require.True(t, ok)
		require.Len(t, batch2.Messages, 2)
		assert.Equal(t, "A", batch2.Messages[0].Creator())
		assert.Equal(t, int64(101), batch2.Messages[0].ID())
		assert.Equal(t, "B", batch2.Messages[1].Creator())
		assert.Equal(t, int64(201), batch2.Messages[1].ID())
	}
}

func TestFlushDiscardsPendingMessages(t *testing.T) {
	b := buffer.New(joinOnAB, 4)
	b.Put(withPayload("A", 1)) // A1 pending, no B yet

	b.Flush()

	b.Put(withPayload("B", 1)) // B1 alone; A1 was discarded so no batch forms
	_, ok := b.TryGet()
	assert.False(t, ok)
}
