// Package resources provides MCP resources for the stage handoff files and
// the run history. Resources are read-only: clients fetch the JSON written by
// a stage without running it again.
package resources
