// Package node implements the unit of concurrency in a pipeline: three
// cooperating workers (ingest, update, optional source) sharing an inbound
// queue, a buffer, and an ordered destination set.
package node

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tevino/abool"
	"go.uber.org/atomic"

	"fluxgraph.dev/flux/internal/buffer"
	"fluxgraph.dev/flux/internal/message"
	"fluxgraph.dev/flux/internal/payload"
	"fluxgraph.dev/flux/internal/synchroniser"
	"fluxgraph.dev/flux/internal/telemetry"
)

// DefaultInboundCapacity is the default bound on a node's inbound queue.
const DefaultInboundCapacity = 1000

// DefaultJoinTimeout bounds how long Stop waits for each worker to exit.
const DefaultJoinTimeout = 2 * time.Second

// DefaultTelemetryBatchSize is the number of records accumulated locally
// before being handed to the attached telemetry recorder.
const DefaultTelemetryBatchSize = 16

// UpdateFunc is the user-defined body of the update worker. It receives the
// work unit dequeued from the buffer and the node itself, so it can call
// Transmit zero or more times.
type UpdateFunc func(n *Node, work *message.Message) error

// SourceFunc is the user-defined body of a source node: a zero-argument
// callback producing the next Message, or a Message carrying a
// ControlPayload to signal the source is exhausted.
type SourceFunc func() *message.Message

// SourceMode controls whether a source node sleeps before or after calling
// its SourceFunc.
type SourceMode int

const (
	SourcePre SourceMode = iota
	SourcePost
)

type destination struct {
	name string
	node *Node
}

// Node is the unit of concurrency: an inbound queue, a buffer, and an
// ordered set of destinations, driven by up to three worker goroutines.
type Node struct {
	Name string

	inbound chan *message.Message
	buf     *buffer.Buffer

	inboundCapacity int
	bufferCapacity  int
	bufferSync      synchroniser.Synchroniser

	mu           sync.RWMutex
	destinations []destination
	origins      map[string]struct{}
	status       Status

	suspended *abool.AtomicBool
	stopping  *abool.AtomicBool
	stopOnce  sync.Once
	stopCh    chan struct{}

	doneIngest chan struct{}
	doneUpdate chan struct{}
	doneSource chan struct{}

	joinTimeout time.Duration

	update UpdateFunc
	source SourceFunc
	srcBy  time.Duration
	srcMod SourceMode

	warmupFn  func() error
	destroyFn func() error
	onConfig  func(property string, value any) error

	lastDataSourceID atomic.Int64
	idSeq            atomic.Int64
	versionSeq       atomic.Int64

	telemetryMu    sync.Mutex
	telemetryBuf   []telemetry.Record
	telemetryBatch int
	recorder       telemetry.Recorder

	autoDump bool
	workDir  string

	inputType  string
	outputType string
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithInboundCapacity overrides DefaultInboundCapacity.
func WithInboundCapacity(capacity int) Option {
	return func(n *Node) { n.inboundCapacity = capacity }
}

// WithBufferCapacity overrides the buffer's output channel capacity.
func WithBufferCapacity(capacity int) Option {
	return func(n *Node) { n.bufferCapacity = capacity }
}

// WithSynchroniser overrides the buffer's synchroniser (passthrough by
// default).
func WithSynchroniser(s synchroniser.Synchroniser) Option {
	return func(n *Node) { n.bufferSync = s }
}

// WithUpdate sets the update worker's user-defined body.
func WithUpdate(fn UpdateFunc) Option {
	return func(n *Node) { n.update = fn }
}

// WithSource makes this a source node: fn is invoked on an interval by a
// dedicated worker.
func WithSource(fn SourceFunc, interval time.Duration, mode SourceMode) Option {
	return func(n *Node) {
		n.source = fn
		n.srcBy = interval
		n.srcMod = mode
	}
}

// WithWarmup sets the user-defined pre-start hook.
func WithWarmup(fn func() error) Option {
	return func(n *Node) { n.warmupFn = fn }
}

// WithDestroy sets the user-defined teardown hook.
func WithDestroy(fn func() error) Option {
	return func(n *Node) { n.destroyFn = fn }
}

// WithOnConfig sets the hook invoked by UpdateNode.
func WithOnConfig(fn func(property string, value any) error) Option {
	return func(n *Node) { n.onConfig = fn }
}

// WithTelemetry attaches a recorder and overrides the batch size.
func WithTelemetry(rec telemetry.Recorder, batchSize int) Option {
	return func(n *Node) {
		n.recorder = rec
		if batchSize > 0 {
			n.telemetryBatch = batchSize
		}
	}
}

// WithAutoDump enables dumping every transmitted message to workDir.
func WithAutoDump(enabled bool) Option {
	return func(n *Node) { n.autoDump = enabled }
}

// WithWorkDir sets the node's pipeline-assigned working directory.
func WithWorkDir(dir string) Option {
	return func(n *Node) { n.workDir = dir }
}

// WithTypes records the documentary input/output payload type names.
func WithTypes(input, output string) Option {
	return func(n *Node) { n.inputType, n.outputType = input, output }
}

// New constructs a Node named name in state StatusNew.
func New(name string, opts ...Option) *Node {
	n := &Node{
		Name:            name,
		inboundCapacity: DefaultInboundCapacity,
		bufferCapacity:  buffer.DefaultCapacity,
		bufferSync:      synchroniser.Passthrough,
		origins:         make(map[string]struct{}),
		suspended:       abool.New(),
		stopping:        abool.New(),
		status:          StatusNew,
		joinTimeout:     DefaultJoinTimeout,
		telemetryBatch:  DefaultTelemetryBatchSize,
	}
	for _, opt := range opts {
		opt(n)
	}

	n.inbound = make(chan *message.Message, n.inboundCapacity)
	n.buf = buffer.New(n.bufferSync, n.bufferCapacity)

	return n
}

// Status returns the node's current lifecycle status.
func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

func (n *Node) setStatus(s Status) {
	n.mu.Lock()
	n.status = s
	n.mu.Unlock()
}

// AddDestination registers dest as a named downstream of n, in insertion
// order, and records n as one of dest's origins.
func (n *Node) AddDestination(name string, dest *Node) {
	n.mu.Lock()
	n.destinations = append(n.destinations, destination{name: name, node: dest})
	n.mu.Unlock()

	dest.mu.Lock()
	dest.origins[n.Name] = struct{}{}
	dest.mu.Unlock()
}

// ClearDestinations drops every registered destination.
func (n *Node) ClearDestinations() {
	n.mu.Lock()
	n.destinations = nil
	n.mu.Unlock()
}

// Origins returns the set of upstream node names.
func (n *Node) Origins() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.origins))
	for o := range n.origins {
		out = append(out, o)
	}
	return out
}

func (n *Node) destinationsSnapshot() []destination {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]destination, len(n.destinations))
	copy(out, n.destinations)
	return out
}

// NextID returns the next monotonically increasing id for a message this
// node creates.
func (n *Node) NextID() int64 { return n.idSeq.Add(1) - 1 }

// NextVersion returns the next monotonically increasing per-creator
// version, starting at 0.
func (n *Node) NextVersion() int64 { return n.versionSeq.Add(1) - 1 }

// Put enqueues msg onto the node's inbound queue. It blocks if the queue is
// full, which is the node's primary backpressure surface.
func (n *Node) Put(msg *message.Message) {
	n.inbound <- msg
}

// Warmup invokes the user-defined pre-start hook, if any, and transitions
// New -> Configured.
func (n *Node) Warmup() error {
	if n.warmupFn != nil {
		if err := n.warmupFn(); err != nil {
			return err
		}
	}
	n.setStatus(StatusConfigured)
	return nil
}

// Start spawns the ingest and update workers, and the source worker if one
// is configured. Idempotent: a call on an already-running node is a no-op.
func (n *Node) Start() {
	if n.Status() == StatusRunning {
		return
	}

	n.stopping.UnSet()
	n.stopCh = make(chan struct{})
	n.doneIngest = make(chan struct{})
	n.doneUpdate = make(chan struct{})

	go n.runIngest()
	go n.runUpdate()
	if n.source != nil {
		n.doneSource = make(chan struct{})
		go n.runSource()
	}

	n.setStatus(StatusRunning)
}

// Stop sets the stop flags, unblocks both queues with a nil sentinel, and
// joins all three workers with a bounded per-worker timeout. Idempotent.
func (n *Node) Stop() {
	if n.Status() != StatusRunning {
		return
	}

	n.stopOnce.Do(func() {
		n.stopping.Set()
		close(n.stopCh)
		n.Put(nil)
		n.buf.Put(nil)

		n.join("ingest", n.doneIngest)
		n.join("update", n.doneUpdate)
		if n.doneSource != nil {
			n.join("source", n.doneSource)
		}

		n.flushTelemetry()
		n.setStatus(StatusStopped)
	})
}

func (n *Node) join(label string, done chan struct{}) {
	select {
	case <-done:
	case <-time.After(n.joinTimeout):
		slog.Warn("node worker join timed out", "node", n.Name, "worker", label, "timeout", n.joinTimeout)
	}
}

// Destroy calls the user-defined cleanup hook. Called by Pipeline after
// Stop.
func (n *Node) Destroy() error {
	if n.destroyFn != nil {
		return n.destroyFn()
	}
	return nil
}

// SetOnConfig invokes the user-defined post-construction configuration
// hook, if any.
func (n *Node) SetOnConfig(property string, value any) error {
	if n.onConfig == nil {
		return nil
	}
	return n.onConfig(property, value)
}

// Suspend makes inbound messages bypass the buffer, forwarding directly to
// destinations.
func (n *Node) Suspend() { n.suspended.Set() }

// Resume restores normal buffered processing.
func (n *Node) Resume() { n.suspended.UnSet() }

// IsSuspended reports whether the node currently bypasses its buffer.
func (n *Node) IsSuspended() bool { return n.suspended.IsSet() }

// InputType and OutputType return the documentary payload type names
// declared via WithTypes; the runtime never enforces them.
func (n *Node) InputType() string  { return n.inputType }
func (n *Node) OutputType() string { return n.outputType }

// WorkDir returns the node's pipeline-assigned working directory.
func (n *Node) WorkDir() string { return n.workDir }

// SetWorkDir stamps the node's pipeline-assigned working directory. Called
// by Pipeline during warmup, after the component builder constructs the
// node but before Warmup() runs.
func (n *Node) SetWorkDir(dir string) { n.workDir = dir }

// SetRecorder attaches a telemetry recorder after construction, for
// pipelines that wire a shared TelemetryManager across every node built by
// an opaque component builder.
func (n *Node) SetRecorder(rec telemetry.Recorder) {
	n.telemetryMu.Lock()
	n.recorder = rec
	n.telemetryMu.Unlock()
}

// ClearSource drops the node's source callback, severing the reference a
// pipeline holds during Destroy.
func (n *Node) ClearSource() {
	n.mu.Lock()
	n.source = nil
	n.mu.Unlock()
}

func (n *Node) runIngest() {
	defer close(n.doneIngest)

	for {
		msg := <-n.inbound
		if msg == nil {
			n.buf.Put(nil)
			return
		}

		if ctrl, ok := msg.Payload().(payload.ControlPayload); ok {
			go n.handleControl(ctrl.Signal, msg)
			if ctrl.Signal.IsStop() {
				n.buf.Put(nil)
				return
			}
			continue
		}

		if n.suspended.IsSet() {
			n.Transmit(msg)
			continue
		}

		n.buf.Put(msg)
		n.recordTelemetry("rx", msg)
	}
}

func (n *Node) runUpdate() {
	defer close(n.doneUpdate)

	for {
		work := n.buf.Get()
		if work == nil {
			return
		}

		n.lastDataSourceID.Store(work.ID())

		if n.update != nil {
			if err := n.update(n, work); err != nil {
				slog.Error("node update failed", "node", n.Name, "error", err)
			}
		}
	}
}

func (n *Node) runSource() {
	defer close(n.doneSource)

	for {
		if n.stopping.IsSet() {
			return
		}

		if n.srcMod == SourcePre {
			if !n.sleep(n.srcBy) {
				return
			}
		}

		msg := n.source()
		if isStopSignal(msg) {
			n.Put(msg)
			return
		}

		if n.stopping.IsSet() {
			return
		}

		if n.srcMod == SourcePost {
			if !n.sleep(n.srcBy) {
				return
			}
		}

		n.Put(msg)
	}
}

// sleep waits for d, waking early (and returning false) if the node is
// asked to stop in the meantime.
func (n *Node) sleep(d time.Duration) bool {
	if d <= 0 {
		return !n.stopping.IsSet()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-n.stopCh:
		return false
	}
}

func isStopSignal(msg *message.Message) bool {
	if msg == nil {
		return false
	}
	ctrl, ok := msg.Payload().(payload.ControlPayload)
	return ok && ctrl.Signal.IsStop()
}

func (n *Node) handleControl(signal payload.ControlSignal, msg *message.Message) {
	switch signal {
	case payload.StopPropagate:
		n.Transmit(msg)
		n.Stop()
	case payload.Stop:
		n.Stop()
	case payload.Start:
		n.Start()
	case payload.Suspend:
		n.Suspend()
	case payload.Resume:
		n.Resume()
	default:
		slog.Debug("node received unhandled control signal", "node", n.Name, "signal", signal.String())
	}
}

// Transmit stamps lineage, freezes data messages, and fans out to every
// destination in insertion order. Destination queues apply backpressure:
// Transmit blocks if a destination's inbound queue is full.
func (n *Node) Transmit(msg *message.Message) {
	_ = msg.StampDataSourceID(n.lastDataSourceID.Load())

	_, isControl := msg.Payload().(payload.ControlPayload)
	if !isControl {
		msg.Freeze()
	}

	for _, d := range n.destinationsSnapshot() {
		d.node.Put(msg)
	}

	if !isControl {
		n.recordTelemetry("tx", msg)
	}

	if n.autoDump && !isControl {
		n.dump(msg)
	}
}

func (n *Node) recordTelemetry(event string, msg *message.Message) {
	origin := msg.Creator()
	var size int64
	if p := msg.Payload(); p != nil {
		size = p.SizeBytes()
	}

	rec := telemetry.Record{
		Ts:     float64(time.Now().UnixNano()) / 1e9,
		Event:  event,
		Node:   n.Name,
		Origin: origin,
		MsgID:  msg.ID(),
		SrcID:  msg.DataSourceID(),
		Size:   size,
	}

	n.telemetryMu.Lock()
	n.telemetryBuf = append(n.telemetryBuf, rec)
	flush := len(n.telemetryBuf) >= n.telemetryBatch
	var batch []telemetry.Record
	if flush {
		batch = n.telemetryBuf
		n.telemetryBuf = nil
	}
	n.telemetryMu.Unlock()

	if flush && n.recorder != nil {
		n.recorder.Record(batch)
	}
}

func (n *Node) flushTelemetry() {
	n.telemetryMu.Lock()
	batch := n.telemetryBuf
	n.telemetryBuf = nil
	n.telemetryMu.Unlock()

	if len(batch) > 0 && n.recorder != nil {
		n.recorder.Record(batch)
	}
}

// Context returns a context cancelled when the node starts shutting down,
// convenient for user-defined update/source bodies that perform blocking
// I/O they want to abort promptly on Stop.
func (n *Node) Context() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	if n.stopCh == nil {
		return ctx
	}
	stopCh := n.stopCh
	go func() {
		<-stopCh
		cancel()
	}()
	return ctx
}
