package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"

	historyDisabled    = "disabled"
	historyUnreachable = "unreachable"
)

// healthCheckTimeout bounds the history database check of one request.
const healthCheckTimeout = 2 * time.Second

// HealthChecker serves the liveness, readiness and detailed health
// endpoints next to /metrics.
type HealthChecker struct {
	ready   atomic.Bool
	sc      *ServerContext
	started time.Time
}

// NewHealthChecker returns a checker that reports ready until SetReady(false).
// sc may be nil, in which case only process liveness is reported.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{sc: sc, started: time.Now()}
	h.ready.Store(true)
	return h
}

func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`

	// Stage is the pipeline stage currently running, if any.
	Stage   string `json:"stage,omitempty"`
	DataDir string `json:"data_dir,omitempty"`

	// History is "ok", "disabled" or "unreachable".
	History string   `json:"history"`
	LastRun *lastRun `json:"last_run,omitempty"`
}

type lastRun struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// RegisterHealthEndpoints mounts /healthz, /readyz and /healthz/detailed.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// LivenessHandler answers 200 while the process runs.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers 503 when the checker is marked not ready or the
// server context is shutting down. Run history is reported but never makes
// the server unready: runs proceed without it.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, code := h.status()

		checks := map[string]string{
			"ready":    healthStatusOK,
			"shutdown": healthStatusOK,
		}
		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
		}
		if h.shuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
		}
		if h.sc != nil {
			checks["history"] = h.historyStatus(r.Context())
		}
		if status != healthStatusOK {
			status = healthStatusNotReady
		}

		writeHealth(w, code, HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler reports uptime, the running stage and the state of
// the run history.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, code := h.status()
		resp := DetailedHealthResponse{
			Status:  status,
			Uptime:  time.Since(h.started).Truncate(time.Second).String(),
			History: historyDisabled,
		}

		if h.sc != nil {
			resp.Stage = h.sc.CurrentStage()
			resp.DataDir = h.sc.Pipeline().DataPath("")
			resp.History = h.historyStatus(r.Context())
			if resp.History == healthStatusOK {
				resp.LastRun = h.lastRun(r.Context())
			}
		}

		writeHealth(w, code, resp)
	})
}

func (h *HealthChecker) status() (string, int) {
	switch {
	case h.shuttingDown():
		return healthStatusShuttingDown, http.StatusServiceUnavailable
	case !h.ready.Load():
		return healthStatusNotReady, http.StatusServiceUnavailable
	default:
		return healthStatusOK, http.StatusOK
	}
}

func (h *HealthChecker) shuttingDown() bool {
	return h.sc != nil && h.sc.IsShutdown()
}

func (h *HealthChecker) historyStatus(ctx context.Context) string {
	history := h.sc.History()
	if history == nil {
		return historyDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := history.Ping(ctx); err != nil {
		return historyUnreachable
	}
	return healthStatusOK
}

func (h *HealthChecker) lastRun(ctx context.Context) *lastRun {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	runs, err := h.sc.History().ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil
	}
	return &lastRun{ID: runs[0].ID, Status: runs[0].Status, StartedAt: runs[0].StartedAt}
}

func writeHealth(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
