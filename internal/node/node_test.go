package node_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxgraph.dev/flux/internal/message"
	"fluxgraph.dev/flux/internal/node"
	"fluxgraph.dev/flux/internal/payload"
)

func bytesMessage(creator string, id, version int64, content string) *message.Message {
	d := payload.NewBytesDraft()
	d.Content = []byte(content)
	return message.New(
		message.WithCreator(creator),
		message.WithID(id),
		message.WithVersion(version),
		message.WithPayload(d),
	)
}

// collector is a trivial sink node's update function: it appends every
// work unit it receives to a slice, guarded by a mutex since update runs on
// its own goroutine.
type collector struct {
	mu   sync.Mutex
	msgs []*message.Message
}

func (c *collector) update(n *node.Node, work *message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, work)
	return nil
}

func (c *collector) snapshot() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*message.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func TestIdentityPassthroughSeedScenario(t *testing.T) {
	sink := &collector{}
	sinkNode := node.New("sink", node.WithUpdate(sink.update))

	var produced int64
	src := node.New("src", node.WithSource(func() *message.Message {
		id := produced
		produced++
		if id >= 4 {
			return message.New(
				message.WithCreator("src"),
				message.WithPayload(payload.ControlPayload{Signal: payload.Stop}),
			)
		}
		return bytesMessage("src", id, id, "audio-frame")
	}, time.Millisecond, node.SourcePost),
		node.WithUpdate(func(n *node.Node, work *message.Message) error {
			n.Transmit(work)
			return nil
		}))
	src.AddDestination("sink", sinkNode)

	sinkNode.Start()
	src.Start()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 4
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return src.Status() == node.StatusStopped
	}, time.Second, time.Millisecond)
	sinkNode.Stop()

	got := sink.snapshot()
	require.GreaterOrEqual(t, len(got), 4)
	for i := 0; i < 4; i++ {
		assert.Equal(t, int64(i), got[i].Version())
	}
}

func TestLineageSeedScenario(t *testing.T) {
	sink := &collector{}
	sinkNode := node.New("sink", node.WithUpdate(sink.update))

	proc := node.New("proc", node.WithUpdate(func(n *node.Node, work *message.Message) error {
		for i := 0; i < 2; i++ {
			out := bytesMessage("proc", work.ID()*10+int64(i), int64(i), "split")
			n.Transmit(out)
		}
		return nil
	}))
	proc.AddDestination("sink", sinkNode)

	sinkNode.Start()
	proc.Start()

	in := bytesMessage("src", 7, 0, "in")
	proc.Put(in)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 2
	}, time.Second, time.Millisecond)

	proc.Stop()
	sinkNode.Stop()

	got := sink.snapshot()
	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, int64(7), m.DataSourceID())
	}
}

func TestSuspendResumeSeedScenario(t *testing.T) {
	sink := &collector{}
	sinkNode := node.New("sink", node.WithUpdate(sink.update))

	var processed []int64
	var mu sync.Mutex
	proc := node.New("proc", node.WithUpdate(func(n *node.Node, work *message.Message) error {
		mu.Lock()
		processed = append(processed, work.ID())
		mu.Unlock()
		n.Transmit(bytesMessage("proc", work.ID(), work.Version(), "processed"))
		return nil
	}))
	proc.AddDestination("sink", sinkNode)

	sinkNode.Start()
	proc.Start()

	proc.Suspend()
	for i := int64(0); i < 3; i++ {
		proc.Put(bytesMessage("src", i, i, "raw"))
	}

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 3
	}, time.Second, time.Millisecond)

	proc.Resume()
	for i := int64(3); i < 5; i++ {
		proc.Put(bytesMessage("src", i, i, "raw"))
	}

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 5
	}, time.Second, time.Millisecond)

	proc.Stop()
	sinkNode.Stop()

	mu.Lock()
	defer mu.Unlock()
	// Only the last two (ids 3,4) went through update, since the first
	// three bypassed the buffer while suspended.
	assert.Equal(t, []int64{3, 4}, processed)
}

func TestStartStopIdempotent(t *testing.T) {
	sink := &collector{}
	n := node.New("n", node.WithUpdate(sink.update))

	n.Start()
	n.Start() // no-op
	assert.Equal(t, node.StatusRunning, n.Status())

	n.Stop()
	n.Stop() // no-op
	assert.Equal(t, node.StatusStopped, n.Status())
}

// TestBackpressureBlocksTransmitWithoutDropping exercises seed scenario 4:
// a proc node Transmits into a slow sink behind a small bounded buffer.
// Transmit must observably block rather than drop messages, and every
// produced message must still arrive once the sink catches up.
func TestBackpressureBlocksTransmitWithoutDropping(t *testing.T) {
	sink := &collector{}
	const (
		perMessageDelay = 100 * time.Millisecond
		produced        = 5
	)
	slowSink := node.New("sink",
		node.WithInboundCapacity(1),
		node.WithBufferCapacity(1),
		node.WithUpdate(func(n *node.Node, work *message.Message) error {
			time.Sleep(perMessageDelay)
			return sink.update(n, work)
		}),
	)

	proc := node.New("proc")
	proc.AddDestination("sink", slowSink)

	slowSink.Start()
	proc.Start()

	allSent := make(chan struct{})
	start := time.Now()
	go func() {
		for i := int64(0); i < produced; i++ {
			proc.Transmit(bytesMessage("proc", i, i, "m"))
		}
		close(allSent)
	}()

	// perMessageDelay*produced worth of work cannot have drained through a
	// buffer this small in a fraction of that time — if it has, transmit
	// never actually blocked on the slow consumer.
	select {
	case <-allSent:
		t.Fatal("all messages transmitted immediately — backpressure did not block")
	case <-time.After(perMessageDelay):
	}
	assert.Less(t, len(sink.snapshot()), produced,
		"sink drained faster than its per-message delay allows")

	require.Eventually(t, func() bool {
		select {
		case <-allSent:
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond, "transmit never unblocked once the sink caught up")
	// Four messages are absorbed without waiting: one in the inbound queue,
	// one held by ingest, one in the buffer channel, one inside update. Only
	// the rest have to wait for the slow sink to finish a message each.
	assert.GreaterOrEqual(t, time.Since(start), perMessageDelay*(produced-4),
		"transmit completed faster than the slow sink should have allowed")

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == produced
	}, 2*time.Second, 5*time.Millisecond, "not every produced message reached the sink")

	proc.Stop()
	slowSink.Stop()

	got := sink.snapshot()
	require.Len(t, got, produced)
	for i, m := range got {
		assert.Equal(t, int64(i), m.ID())
	}
}

func TestControlStopPropagateForwardsThenStops(t *testing.T) {
	sink := &collector{}
	sinkNode := node.New("sink", node.WithUpdate(sink.update))

	mid := node.New("mid")
	mid.AddDestination("sink", sinkNode)

	sinkNode.Start()
	mid.Start()

	mid.Put(message.New(
		message.WithCreator("mid"),
		message.WithPayload(payload.ControlPayload{Signal: payload.StopPropagate}),
	))

	require.Eventually(t, func() bool {
		return mid.Status() == node.StatusStopped
	}, time.Second, time.Millisecond)

	// The forwarded STOP_PROPAGATE reaches the sink, which stops itself too.
	require.Eventually(t, func() bool {
		return sinkNode.Status() == node.StatusStopped
	}, time.Second, time.Millisecond)

	sinkNode.Stop()
}
