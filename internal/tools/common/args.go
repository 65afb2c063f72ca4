package common

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/agentleads/internal/instrumentation"
)

// Argument names shared by several tools.
const (
	ArgZIP   = "zip"
	ArgLevel = "level"
)

type invocationKey struct{}

// withInvocation stores the invocation record in ctx for the handler.
func withInvocation(ctx context.Context, ti *instrumentation.ToolInvocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, ti)
}

// InvocationFromContext returns the invocation record of the running tool
// call. Handlers use it to attach the run id and agent count. The returned
// record is never nil.
func InvocationFromContext(ctx context.Context) *instrumentation.ToolInvocation {
	if ti, ok := ctx.Value(invocationKey{}).(*instrumentation.ToolInvocation); ok && ti != nil {
		return ti
	}
	return instrumentation.NewToolInvocation("")
}

// invocationFromRequest creates the invocation record for a tool call,
// picking up the ZIP code and enrichment level arguments when present.
func invocationFromRequest(ctx context.Context, toolName string, request mcp.CallToolRequest) *instrumentation.ToolInvocation {
	ti := instrumentation.NewToolInvocation(toolName).WithSpanContext(ctx)
	if zip := request.GetString(ArgZIP, ""); zip != "" {
		ti.WithZIP(zip)
	}
	if level := request.GetString(ArgLevel, ""); level != "" {
		ti.WithEnrichment(level)
	}
	return ti
}
