package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/teemow/agentleads"

// Span attribute keys.
const (
	SpanAttrTool       = "mcp.tool"
	SpanAttrStage      = "pipeline.stage"
	SpanAttrRunID      = "pipeline.run_id"
	SpanAttrZIP        = "pipeline.zip"
	SpanAttrEnrichment = "pipeline.enrichment_level"
	SpanAttrAgents     = "pipeline.agents"
	SpanAttrFile       = "pipeline.file"
	SpanAttrService    = "api.service"
	SpanAttrOperation  = "api.operation"
)

// SpanAttrs describes the run a span belongs to. Empty fields are omitted.
type SpanAttrs struct {
	RunID      string
	ZIP        string
	Enrichment string
	File       string
}

func (a SpanAttrs) KeyValues() []attribute.KeyValue {
	var kv []attribute.KeyValue
	add := func(key, value string) {
		if value != "" {
			kv = append(kv, attribute.String(key, value))
		}
	}
	add(SpanAttrRunID, a.RunID)
	add(SpanAttrZIP, a.ZIP)
	add(SpanAttrEnrichment, a.Enrichment)
	add(SpanAttrFile, a.File)
	return kv
}

// Agents is the attribute for the number of agents an operation produced.
func Agents(n int) attribute.KeyValue {
	return attribute.Int(SpanAttrAgents, n)
}

func startSpan(ctx context.Context, name string, kind trace.SpanKind, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(tracerName).Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
}

// StartToolSpan starts the server span "tool.<name>" of an MCP call.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return startSpan(ctx, "tool."+toolName, trace.SpanKindServer,
		append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...))
}

// StartStageSpan starts the span "pipeline.<stage>".
func StartStageSpan(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return startSpan(ctx, "pipeline."+stage, trace.SpanKindInternal,
		append([]attribute.KeyValue{attribute.String(SpanAttrStage, stage)}, attrs...))
}

// StartAPISpan starts the client span "<service>.<operation>" around a
// logical API call that may take several HTTP requests, such as polling an
// extract job. The requests themselves get child spans from NewTransport.
func StartAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return startSpan(ctx, service+"."+operation, trace.SpanKindClient,
		append([]attribute.KeyValue{
			attribute.String(SpanAttrService, service),
			attribute.String(SpanAttrOperation, operation),
		}, attrs...))
}

// SetSpanStatus marks the span failed with err, or ok when err is nil.
func SetSpanStatus(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
