// Package cmd implements the command-line interface for agentleads.
//
// This package provides the following commands:
//   - run: Walk through all pipeline stages interactively (default)
//   - scrape, linkedin, enrich, upload: Run a single pipeline stage
//   - auth: Authorize Google Drive and Sheets access
//   - history: List recorded pipeline runs
//   - init: Write an example agents file to edit by hand
//   - serve: Start the MCP server to provide tools for AI assistants
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// The run command is the default command when no subcommand is specified.
package cmd
