package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrStage     = "stage"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrOutcome   = "outcome"
	attrTool      = "tool"
	attrRegion    = "zip_region"
	attrZIP       = "zip"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// Pipeline metrics
	stageRunsTotal       metric.Int64Counter
	stageDuration        metric.Float64Histogram
	agentsProcessedTotal metric.Int64Counter

	// External API metrics
	apiRequestsTotal   metric.Int64Counter
	apiRequestDuration metric.Float64Histogram

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether the full ZIP code is attached to stage metrics
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.stageRunsTotal, err = meter.Int64Counter(
		"pipeline_stage_runs_total",
		metric.WithDescription("Total number of pipeline stage executions"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline_stage_runs_total counter: %w", err)
	}

	m.stageDuration, err = meter.Float64Histogram(
		"pipeline_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900, 1800),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline_stage_duration_seconds histogram: %w", err)
	}

	m.agentsProcessedTotal, err = meter.Int64Counter(
		"agents_processed_total",
		metric.WithDescription("Total number of agents processed by a pipeline stage"),
		metric.WithUnit("{agent}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agents_processed_total counter: %w", err)
	}

	m.apiRequestsTotal, err = meter.Int64Counter(
		"external_api_requests_total",
		metric.WithDescription("Total number of requests to external APIs"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create external_api_requests_total counter: %w", err)
	}

	m.apiRequestDuration, err = meter.Float64Histogram(
		"external_api_request_duration_seconds",
		metric.WithDescription("External API request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create external_api_request_duration_seconds histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordStage records one execution of a pipeline stage.
//
// Parameters:
//   - stage: Stage name (scrape, linkedin, enrich, upload)
//   - status: Result status ("success", "error" or "skipped")
//   - zip: ZIP code of the run; reduced to its region unless detailed labels are enabled
//   - duration: Time taken by the stage
func (m *Metrics) RecordStage(ctx context.Context, stage, status, zip string, duration time.Duration) {
	if m == nil || m.stageRunsTotal == nil || m.stageDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStage, stage),
		attribute.String(attrStatus, status),
		attribute.String(attrRegion, ZIPRegion(zip)),
	}
	if m.detailedLabels && zip != "" {
		attrs = append(attrs, attribute.String(attrZIP, zip))
	}

	m.stageRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAgents adds n agents with the given outcome to the per-stage counter.
func (m *Metrics) RecordAgents(ctx context.Context, stage, outcome string, n int) {
	if m == nil || m.agentsProcessedTotal == nil || n <= 0 {
		return // Instrumentation not initialized
	}

	m.agentsProcessedTotal.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrOutcome, outcome),
	))
}

// RecordAPIRequest records a request to an external API.
//
// Parameters:
//   - service: External service (firecrawl, wiza, drive, sheets)
//   - operation: Normalized operation, see APIOperation
//   - status: Result status ("success", "error" or "rate_limited")
//   - duration: Time taken for the request
func (m *Metrics) RecordAPIRequest(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.apiRequestsTotal == nil || m.apiRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.apiRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.apiRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
