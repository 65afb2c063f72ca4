package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation is the audit record of one MCP tool call. Handlers fill in
// the run it created and the number of agents it produced.
type ToolInvocation struct {
	Tool       string
	ZIP        string
	RunID      string
	Stage      string
	Enrichment string
	Agents     int

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{Tool: tool, StartTime: time.Now()}
}

func (ti *ToolInvocation) WithZIP(zip string) *ToolInvocation {
	ti.ZIP = zip
	return ti
}

func (ti *ToolInvocation) WithRun(runID, stage string) *ToolInvocation {
	ti.RunID, ti.Stage = runID, stage
	return ti
}

func (ti *ToolInvocation) WithEnrichment(level string) *ToolInvocation {
	ti.Enrichment = level
	return ti
}

func (ti *ToolInvocation) WithAgents(n int) *ToolInvocation {
	ti.Agents = n
	return ti
}

// WithSpanContext copies the trace and span IDs of the span in ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ti.TraceID = sc.TraceID().String()
		ti.SpanID = sc.SpanID().String()
	}
	return ti
}

func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.complete(nil)
}

func (ti *ToolInvocation) CompleteWithError(err error) *ToolInvocation {
	return ti.complete(err)
}

func (ti *ToolInvocation) complete(err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = err == nil
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// Attrs returns the record as log attributes. Without details the ZIP code
// is reduced to its region and the run and span IDs are left out, since
// together they identify which lookups a user made.
func (ti *ToolInvocation) Attrs(details bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, slog.String(key, value))
		}
	}

	if details {
		add("zip", ti.ZIP)
		add("run_id", ti.RunID)
	} else if ti.ZIP != "" {
		add("zip_region", ZIPRegion(ti.ZIP))
	}
	add("stage", ti.Stage)
	add("enrichment_level", ti.Enrichment)
	if ti.Agents > 0 {
		attrs = append(attrs, slog.Int("agents", ti.Agents))
	}
	add("trace_id", ti.TraceID)
	if details {
		add("span_id", ti.SpanID)
	}
	add("error", ti.Error)
	return attrs
}

// AuditLogger writes one record per tool call. A nil AuditLogger drops
// everything.
type AuditLogger struct {
	logger *slog.Logger
	config AuditLoggingConfig
}

// NewAuditLogger returns an enabled logger without details.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger.With(slog.String("component", "audit")), config: config}
}

// LogToolInvocation logs successful calls at info and failed ones at warn.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.config.Enabled {
		return
	}
	level, msg := slog.LevelInfo, "tool_executed"
	if !ti.Success {
		level, msg = slog.LevelWarn, "tool_failed"
	}
	al.logger.LogAttrs(context.Background(), level, msg, ti.Attrs(al.config.IncludeDetails)...)
}
