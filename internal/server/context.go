package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/pipeline"
	"github.com/teemow/agentleads/internal/store"
)

// ErrStageRunning is returned when a stage is requested while another one
// is still running.
var ErrStageRunning = errors.New("another pipeline stage is running")

// ErrShutdown is returned once the server context has been shut down.
var ErrShutdown = errors.New("server is shutting down")

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	pipeline *pipeline.Pipeline
	history  *store.Store

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	stageMu      sync.Mutex
	currentStage string

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context. history may be nil, in
// which case runs are not listed.
func NewServerContext(ctx context.Context, p *pipeline.Pipeline, history *store.Store) (*ServerContext, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		pipeline: p,
		history:  history,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Pipeline returns the pipeline the tools execute stages on.
func (sc *ServerContext) Pipeline() *pipeline.Pipeline {
	return sc.pipeline
}

// History returns the run history, or nil when none is configured.
func (sc *ServerContext) History() *store.Store {
	return sc.history
}

// Metrics returns the metrics instance, or nil when instrumentation is disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetMetrics sets the metrics used for tool instrumentation.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// AuditLogger returns the audit logger, or nil when auditing is disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// SetAuditLogger sets the audit logger for tool invocations.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AcquireStage reserves the data directory for stage. The returned function
// releases it and must be called exactly once.
func (sc *ServerContext) AcquireStage(stage string) (func(), error) {
	if sc.IsShutdown() {
		return nil, ErrShutdown
	}
	if !sc.stageMu.TryLock() {
		return nil, ErrStageRunning
	}

	sc.mu.Lock()
	sc.currentStage = stage
	sc.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sc.mu.Lock()
			sc.currentStage = ""
			sc.mu.Unlock()
			sc.stageMu.Unlock()
		})
	}, nil
}

// CurrentStage returns the name of the running stage, or "" when idle.
func (sc *ServerContext) CurrentStage() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.currentStage
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
