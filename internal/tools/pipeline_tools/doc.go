// Package pipeline_tools exposes the agentleads pipeline stages and the run
// history as MCP tools.
//
// Each stage tool runs exactly one stage against the handoff files in the
// data directory, records it as its own run and returns the run report as
// JSON. Stage tools are serialised; a call made while another stage runs
// fails immediately.
package pipeline_tools
