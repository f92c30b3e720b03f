// Package manager implements the process-wide pipeline registry: a
// mutex-guarded map from pipeline id to *pipeline.Pipeline, exposing the
// CRUD-ish surface an external CLI/HTTP collaborator drives.
package manager

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	uuid "github.com/satori/go.uuid"

	"fluxgraph.dev/flux/internal/component"
	"fluxgraph.dev/flux/internal/pipeline"
	"fluxgraph.dev/flux/internal/telemetry"
)

// Reason codes returned in a KO Result's Reason field.
const (
	ReasonInvalidID      = "INVALID_ID"
	ReasonAlreadyWarm    = "ALREADY_WARM"
	ReasonAlreadyRunning = "ALREADY_RUNNING"
	ReasonNotWarm        = "NOT_WARM"
	ReasonNotRunning     = "NOT_RUNNING"
)

// Result is the status record every Manager method returns.
type Result struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func ok() Result              { return Result{Status: "OK"} }
func ko(reason string) Result { return Result{Status: "KO", Reason: reason} }
func koErr(err error) Result  { return Result{Status: "KO", Reason: err.Error()} }

// CreateResult is Create's return value: a Result plus the assigned id.
type CreateResult struct {
	Result
	ID string `json:"id,omitempty"`
}

// StatusResult is Status's return value: a Result plus the pipeline report,
// when found.
type StatusResult struct {
	Result
	Report pipeline.StatusReport `json:"report,omitempty"`
}

// Manager is the process-wide singleton mapping pipeline ids to pipelines.
type Manager struct {
	mu        sync.Mutex
	pipelines map[string]*pipeline.Pipeline

	baseFolder string
	builder    component.Builder
	recorder   telemetry.Recorder
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithBuilder overrides the component.Builder every created pipeline uses.
func WithBuilder(b component.Builder) Option {
	return func(m *Manager) { m.builder = b }
}

// WithTelemetryRecorder attaches a shared recorder to every created
// pipeline's nodes.
func WithTelemetryRecorder(rec telemetry.Recorder) Option {
	return func(m *Manager) { m.recorder = rec }
}

// New constructs a Manager rooted at baseFolder. Each created pipeline gets
// its own subdirectory, named after its assigned id, under baseFolder.
func New(baseFolder string, opts ...Option) *Manager {
	m := &Manager{
		pipelines:  make(map[string]*pipeline.Pipeline),
		baseFolder: baseFolder,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create assigns a fresh UUIDv4 id and folder to cfg, constructs the
// pipeline, and registers it. The pipeline is left in status NEW; callers
// must still call Warmup.
func (m *Manager) Create(cfg pipeline.Config) CreateResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewV4().String()
	cfg.Pipeline.ID = id
	if cfg.Pipeline.Folder == "" {
		cfg.Pipeline.Folder = filepath.Join(m.baseFolder, id)
	}

	var opts []pipeline.Option
	if m.builder != nil {
		opts = append(opts, pipeline.WithBuilder(m.builder))
	}
	if m.recorder != nil {
		opts = append(opts, pipeline.WithTelemetryRecorder(m.recorder))
	}

	p := pipeline.New(cfg, opts...)
	m.pipelines[id] = p

	slog.Info("pipeline created", "id", id, "name", cfg.Pipeline.Name)
	return CreateResult{Result: ok(), ID: id}
}

// Warmup warms up the named pipeline. KO/ALREADY_WARM if it isn't NEW.
func (m *Manager) Warmup(id string) Result {
	p, result, ok := m.lookup(id)
	if !ok {
		return result
	}
	if p.Status() != pipeline.StatusNew {
		return ko(ReasonAlreadyWarm)
	}
	if err := p.Warmup(); err != nil {
		return koErr(err)
	}
	return Result{Status: "OK"}
}

// Start starts the named pipeline. KO/NOT_WARM if it's still NEW,
// KO/ALREADY_RUNNING if it's already RUNNING.
func (m *Manager) Start(id string) Result {
	p, result, ok := m.lookup(id)
	if !ok {
		return result
	}
	switch p.Status() {
	case pipeline.StatusNew:
		return ko(ReasonNotWarm)
	case pipeline.StatusRunning:
		return ko(ReasonAlreadyRunning)
	}
	if err := p.Start(); err != nil {
		return koErr(err)
	}
	return Result{Status: "OK"}
}

// Stop stops the named pipeline. KO/NOT_RUNNING if it isn't RUNNING.
func (m *Manager) Stop(id string) Result {
	p, result, ok := m.lookup(id)
	if !ok {
		return result
	}
	if p.Status() != pipeline.StatusRunning {
		return ko(ReasonNotRunning)
	}
	if err := p.Stop(); err != nil {
		return koErr(err)
	}
	return Result{Status: "OK"}
}

// Delete destroys and forgets the named pipeline. If wipeFolder is true its
// on-disk working directory is also removed; otherwise config.json and any
// node artefacts are left behind.
func (m *Manager) Delete(id string, wipeFolder bool) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.pipelines[id]
	if !exists {
		return ko(ReasonInvalidID)
	}

	if err := p.Destroy(); err != nil {
		slog.Error("pipeline destroy failed", "id", id, "error", err)
	}
	delete(m.pipelines, id)

	if wipeFolder {
		if err := os.RemoveAll(p.Folder()); err != nil {
			slog.Error("pipeline folder wipe failed", "id", id, "folder", p.Folder(), "error", err)
		}
	}

	slog.Info("pipeline deleted", "id", id, "wiped", wipeFolder)
	return Result{Status: "OK"}
}

// Status reports the named pipeline's current state.
func (m *Manager) Status(id string) StatusResult {
	p, result, ok := m.lookup(id)
	if !ok {
		return StatusResult{Result: result}
	}
	return StatusResult{Result: Result{Status: "OK"}, Report: p.StatusReport()}
}

// List returns every registered pipeline's current status report.
func (m *Manager) List() []pipeline.StatusReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	reports := make([]pipeline.StatusReport, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		reports = append(reports, p.StatusReport())
	}
	return reports
}

// lookup returns the pipeline for id under the manager lock, or a
// KO/INVALID_ID result when id is unknown.
func (m *Manager) lookup(id string) (*pipeline.Pipeline, Result, bool) {
	m.mu.Lock()
	p, exists := m.pipelines[id]
	m.mu.Unlock()
	if !exists {
		return nil, ko(ReasonInvalidID), false
	}
	return p, Result{}, true
}
