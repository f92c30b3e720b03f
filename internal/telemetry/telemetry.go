// Package telemetry implements the single-writer CSV sink that nodes hand
// batches of rx/tx records to. Recording is best-effort: a full or stopped
// manager drops records rather than applying backpressure to the data
// path.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
)

// Record is one telemetry observation: a node receiving or transmitting a
// single message.
type Record struct {
	Ts     float64 // monotonic-compatible seconds
	Event  string  // "rx" or "tx"
	Node   string
	Origin string
	MsgID  int64
	SrcID  int64
	Size   int64
}

// Recorder is the interface a Node depends on; Manager is the concrete
// implementation shipped here.
type Recorder interface {
	Record(batch []Record)
}

var csvHeader = []string{"ts", "evt", "node", "origin", "msg_id", "src_id", "size"}

// Manager drains a queue of record batches on a single goroutine, appending
// each record as a row to a CSV file.
type Manager struct {
	queue chan []Record
	done  chan struct{}
}

// capacity bounds how many pending batches Manager tolerates before it
// starts dropping; this keeps Record non-blocking for callers on the data
// path even if the writer goroutine stalls on I/O.
const capacity = 256

// NewManager opens (or creates) path for appending and starts the writer
// goroutine. The header is written only when the file is new/empty.
func NewManager(path string) (*Manager, error) {
	needsHeader := false
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}

	m := &Manager{
		queue: make(chan []Record, capacity),
		done:  make(chan struct{}),
	}

	w := csv.NewWriter(f)
	if needsHeader {
		_ = w.Write(csvHeader)
		w.Flush()
	}

	go m.run(f, w)
	return m, nil
}

func (m *Manager) run(f *os.File, w *csv.Writer) {
	defer close(m.done)
	defer f.Close()

	for batch := range m.queue {
		for _, r := range batch {
			row := []string{
				fmt.Sprintf("%f", r.Ts),
				r.Event,
				r.Node,
				r.Origin,
				fmt.Sprintf("%d", r.MsgID),
				fmt.Sprintf("%d", r.SrcID),
				fmt.Sprintf("%d", r.Size),
			}
			if err := w.Write(row); err != nil {
				slog.Warn("telemetry write failed", "error", err)
			}
		}
		w.Flush()
	}
}

// Record enqueues a batch for writing. Non-blocking: if the queue is full,
// or the manager has been stopped, the batch is dropped and logged, never
// applying backpressure to the caller's data path.
func (m *Manager) Record(batch []Record) {
	defer func() {
		if recover() != nil {
			slog.Warn("telemetry manager stopped, dropping batch", "size", len(batch))
		}
	}()
	select {
	case m.queue <- batch:
	default:
		slog.Warn("telemetry queue full, dropping batch", "size", len(batch))
	}
}

// Stop closes the queue and waits for the writer to drain and exit.
func (m *Manager) Stop() {
	close(m.queue)
	<-m.done
}
