package common

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/logging"
	"github.com/teemow/agentleads/internal/server"
)

// ToolHandler is the signature of an MCP tool handler.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span, metrics and audit
// logging.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		invocation := invocationFromRequest(ctx, toolName, request)

		result, err := handler(withInvocation(ctx, invocation), request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			invocation.CompleteWithError(err)
			instrumentation.SetSpanStatus(span, err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			resultErr := errors.New(resultText(result))
			invocation.CompleteWithError(resultErr)
			instrumentation.SetSpanStatus(span, resultErr)
		default:
			invocation.CompleteSuccess()
			instrumentation.SetSpanStatus(span, nil)
		}
		span.SetAttributes(instrumentation.SpanAttrs{
			RunID:      invocation.RunID,
			ZIP:        invocation.ZIP,
			Enrichment: invocation.Enrichment,
		}.KeyValues()...)
		span.SetAttributes(instrumentation.Agents(invocation.Agents))

		sc.Metrics().RecordToolInvocation(ctx, toolName, status, duration)
		sc.AuditLogger().LogToolInvocation(invocation)
		logging.WithTool(slog.Default(), toolName).Debug("tool finished",
			logging.Status(status), slog.Duration(logging.KeyDuration, duration))

		return result, err
	}
}

// InstrumentedStageHandler is like InstrumentedToolHandler but also reserves
// the data directory for stage while the handler runs. A call made while
// another stage is running fails with a tool error.
func InstrumentedStageHandler(toolName, stage string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return InstrumentedToolHandler(toolName, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		release, err := sc.AcquireStage(stage)
		if err != nil {
			logging.WithTool(slog.Default(), toolName).Warn("stage rejected",
				logging.Stage(stage), slog.String("running", sc.CurrentStage()))
			return mcp.NewToolResultError(err.Error()), nil
		}
		defer release()

		InvocationFromContext(ctx).Stage = stage
		return handler(ctx, request)
	})
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return "tool returned an error"
}
