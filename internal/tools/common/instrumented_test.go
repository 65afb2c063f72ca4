package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/pipeline"
	"github.com/teemow/agentleads/internal/server"
)

type noFactory struct{}

func (noFactory) Scraper(int) (pipeline.Scraper, error)       { return nil, errors.New("unused") }
func (noFactory) Finder() (pipeline.ProfileFinder, error)     { return nil, errors.New("unused") }
func (noFactory) Enricher() (pipeline.ContactEnricher, error) { return nil, errors.New("unused") }
func (noFactory) Uploader(context.Context, bool) (pipeline.SheetUploader, error) {
	return nil, errors.New("unused")
}

func newServerContext(t *testing.T) *server.ServerContext {
	t.Helper()
	p, err := pipeline.New(pipeline.Options{DataDir: t.TempDir(), Factory: noFactory{}})
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	sc, err := server.NewServerContext(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("failed to create server context: %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func newRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// instrument attaches metrics and an audit logger writing to the returned buffer.
func instrument(t *testing.T, sc *server.ServerContext) (*sdkmetric.ManualReader, *bytes.Buffer) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := instrumentation.NewMetrics(provider.Meter("test"), false)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	sc.SetMetrics(metrics)

	var buf bytes.Buffer
	sc.SetAuditLogger(instrumentation.NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	return reader, &buf
}

func toolInvocations(t *testing.T, reader *sdkmetric.ManualReader, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "mcp_tool_invocations_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("status"); ok && v.AsString() == status {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestInstrumentedToolHandler_Success(t *testing.T) {
	sc := newServerContext(t)

	called := false
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("success"), nil
	}

	wrapped := InstrumentedToolHandler("test_tool", sc, handler)
	result, err := wrapped(context.Background(), newRequest(nil))

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
	if result == nil {
		t.Error("expected result, got nil")
	}
}

func TestInstrumentedToolHandler_Error(t *testing.T) {
	sc := newServerContext(t)
	reader, buf := instrument(t, sc)

	expectedErr := errors.New("test error")
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, expectedErr
	}

	wrapped := InstrumentedToolHandler("test_tool", sc, handler)
	_, err := wrapped(context.Background(), newRequest(nil))

	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if got := toolInvocations(t, reader, instrumentation.StatusError); got != 1 {
		t.Errorf("error invocations = %d, want 1", got)
	}
	if !strings.Contains(buf.String(), "tool_failed") {
		t.Errorf("audit log missing tool_failed: %s", buf.String())
	}
}

func TestInstrumentedToolHandler_ErrorResult(t *testing.T) {
	sc := newServerContext(t)
	reader, buf := instrument(t, sc)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("error message"), nil
	}

	wrapped := InstrumentedToolHandler("test_tool", sc, handler)
	result, err := wrapped(context.Background(), newRequest(nil))

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected an error result")
	}
	if got := toolInvocations(t, reader, instrumentation.StatusError); got != 1 {
		t.Errorf("error invocations = %d, want 1", got)
	}
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("audit log missing error text: %s", buf.String())
	}
}

func TestInstrumentedToolHandler_AuditCarriesArguments(t *testing.T) {
	sc := newServerContext(t)
	reader, buf := instrument(t, sc)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		InvocationFromContext(ctx).WithRun("run-1", instrumentation.StageEnrich).WithAgents(7)
		return mcp.NewToolResultText("ok"), nil
	}

	wrapped := InstrumentedToolHandler("enrich_contacts", sc, handler)
	_, err := wrapped(context.Background(), newRequest(map[string]any{
		ArgZIP:   "90210",
		ArgLevel: "full",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := toolInvocations(t, reader, instrumentation.StatusSuccess); got != 1 {
		t.Errorf("success invocations = %d, want 1", got)
	}

	out := buf.String()
	for _, want := range []string{"tool_executed", "zip_region=902xx", "enrichment_level=full", "agents=7"} {
		if !strings.Contains(out, want) {
			t.Errorf("audit log missing %q: %s", want, out)
		}
	}
	// Full ZIP codes stay out of the default audit record.
	if strings.Contains(out, "zip=90210") {
		t.Errorf("audit log leaked full ZIP: %s", out)
	}
}

func TestInstrumentedStageHandler_RejectsConcurrentStage(t *testing.T) {
	sc := newServerContext(t)

	release, err := sc.AcquireStage(instrumentation.StageScrape)
	if err != nil {
		t.Fatalf("AcquireStage() error = %v", err)
	}

	called := false
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("ok"), nil
	}
	wrapped := InstrumentedStageHandler("find_linkedin_profiles", instrumentation.StageLinkedIn, sc, handler)

	result, err := wrapped(context.Background(), newRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Error("expected an error result while another stage runs")
	}
	if called {
		t.Error("handler must not run while another stage runs")
	}

	release()

	result, err = wrapped(context.Background(), newRequest(nil))
	if err != nil || result.IsError {
		t.Errorf("expected success after release, got result=%v err=%v", result, err)
	}
	if sc.CurrentStage() != "" {
		t.Errorf("stage not released: %q", sc.CurrentStage())
	}
}

func TestInvocationFromContext_Empty(t *testing.T) {
	if InvocationFromContext(context.Background()) == nil {
		t.Error("InvocationFromContext() returned nil")
	}
}
