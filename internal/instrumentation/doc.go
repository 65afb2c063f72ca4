// Package instrumentation provides OpenTelemetry instrumentation for the
// agentleads pipeline and its MCP server.
//
// # Metrics
//
// Pipeline Metrics:
//   - pipeline_stage_runs_total: Counter of stage executions by stage, status and ZIP region
//   - pipeline_stage_duration_seconds: Histogram of stage durations
//   - agents_processed_total: Counter of agents handled per stage by outcome
//
// External API Metrics:
//   - external_api_requests_total: Counter of Firecrawl, Wiza, Drive and Sheets requests
//     by service, operation and status
//   - external_api_request_duration_seconds: Histogram of request durations
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for pipeline stages (pipeline.<stage>), MCP tools
// (tool.<name>) and every outgoing HTTP request made through Transport
// (<service>.<METHOD> <path>).
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: agentleads)
//   - METRICS_DETAILED_LABELS: Attach full ZIP codes to stage metrics
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	httpClient := instrumentation.NewHTTPClient(provider.Metrics(), instrumentation.ServiceWiza, time.Minute)
//
//	provider.Metrics().RecordStage(ctx, instrumentation.StageScrape, instrumentation.StatusSuccess, "90210", time.Since(start))
package instrumentation
