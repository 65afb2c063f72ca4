// Package common provides shared utilities for the MCP tool implementations:
// the instrumentation wrapper every tool handler is registered through and
// helpers for reading tool arguments.
package common
