package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/teemow/agentleads/internal/instrumentation"
)

func newProvider(t *testing.T, exporter string, enabled bool) *instrumentation.Provider {
	t.Helper()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		ServiceName:     "agentleads-test",
		Enabled:         enabled,
		MetricsExporter: exporter,
		TracingExporter: instrumentation.ExporterNone,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

// startMetricsServer serves on a free loopback port until the test ends.
func startMetricsServer(t *testing.T, config MetricsServerConfig) *MetricsServer {
	t.Helper()
	config.Addr = "127.0.0.1:0"
	srv, err := NewMetricsServer(config)
	if err != nil {
		t.Fatalf("NewMetricsServer() error = %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestNewMetricsServer_RequiresPrometheus(t *testing.T) {
	tests := []struct {
		name     string
		provider *instrumentation.Provider
		wantErr  string
	}{
		{name: "nil provider", wantErr: "instrumentation provider is required"},
		{name: "disabled", provider: newProvider(t, instrumentation.ExporterPrometheus, false), wantErr: "not enabled"},
		{name: "stdout exporter", provider: newProvider(t, instrumentation.ExporterStdout, true), wantErr: "requires the prometheus metrics exporter"},
		{name: "prometheus", provider: newProvider(t, instrumentation.ExporterPrometheus, true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewMetricsServer(MetricsServerConfig{InstrumentationProvider: tt.provider})
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if srv.Addr() != DefaultMetricsAddr {
					t.Errorf("Addr() = %q, want default %q", srv.Addr(), DefaultMetricsAddr)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestMetricsServer_ServesStageMetrics(t *testing.T) {
	provider := newProvider(t, instrumentation.ExporterPrometheus, true)
	provider.Metrics().RecordStage(context.Background(), instrumentation.StageScrape, instrumentation.StatusSuccess, "90210", time.Second)

	srv := startMetricsServer(t, MetricsServerConfig{InstrumentationProvider: provider})
	base := "http://" + srv.Addr()

	if code, body := get(t, base+"/healthz"); code != http.StatusOK || body != "ok" {
		t.Errorf("GET /healthz = %d %q", code, body)
	}
	code, body := get(t, base+"/metrics")
	if code != http.StatusOK {
		t.Errorf("GET /metrics status = %d", code)
	}
	if !strings.Contains(body, "pipeline_stage_runs_total") {
		t.Error("GET /metrics is missing pipeline_stage_runs_total")
	}
}

func TestMetricsServer_HealthEndpoints(t *testing.T) {
	checker := NewHealthChecker(newTestServerContext(t))
	srv := startMetricsServer(t, MetricsServerConfig{
		InstrumentationProvider: newProvider(t, instrumentation.ExporterPrometheus, true),
		Health:                  checker,
	})
	base := "http://" + srv.Addr()

	checker.SetReady(false)
	code, body := get(t, base+"/readyz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	var ready HealthResponse
	if err := json.Unmarshal([]byte(body), &ready); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ready.Checks["ready"] != healthStatusNotReady || ready.Checks["history"] != healthStatusOK {
		t.Errorf("unexpected checks %v", ready.Checks)
	}

	code, body = get(t, base+"/healthz/detailed")
	if code != http.StatusServiceUnavailable || !strings.Contains(body, `"history":"ok"`) {
		t.Errorf("GET /healthz/detailed = %d %s", code, body)
	}
}

func TestMetricsServer_ListenInvalidAddr(t *testing.T) {
	srv, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    "no-port",
		InstrumentationProvider: newProvider(t, instrumentation.ExporterPrometheus, true),
	})
	if err != nil {
		t.Fatalf("NewMetricsServer() error = %v", err)
	}
	if err := srv.Start(); err == nil {
		t.Error("Start() expected error for an address without port")
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() after failed start = %v", err)
	}
}
