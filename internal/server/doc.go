// Package server holds the state shared by the MCP tools of the agentleads
// server and the optional HTTP endpoints that run next to it.
//
// # Key Components
//
// ServerContext carries the pipeline, the run history and the
// instrumentation used by every tool handler. Only one pipeline stage runs
// at a time because stages share the handoff files in the data directory;
// AcquireStage enforces that.
//
// MetricsServer exposes Prometheus metrics on a dedicated address, together
// with the liveness and readiness endpoints of HealthChecker.
package server
