package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/logging"
	"github.com/teemow/agentleads/internal/resources"
	"github.com/teemow/agentleads/internal/server"
	"github.com/teemow/agentleads/internal/tools/pipeline_tools"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server on stdin/stdout to expose the
pipeline stages and run history as tools for AI assistants. The stage files
and recent runs are also exposed as read-only resources.

The server never runs the Google consent flow because stdout carries the
protocol. Authorize first with:

  agentleads auth

Logs go to stderr (and LOG_FILE when set). With --metrics-addr, Prometheus
metrics and /healthz, /readyz and /healthz/detailed are served on that address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	return cmd
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{out: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer a.Close()

	serverContext, err := server.NewServerContext(ctx, a.pipeline, a.history)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			a.logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	// Set metrics and audit logger on server context for tool instrumentation
	if a.provider.Enabled() {
		serverContext.SetMetrics(a.provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(a.logger, a.instr.AuditLogging))
	}

	if err := a.startMetricsServer(server.NewHealthChecker(serverContext)); err != nil {
		return err
	}

	mcpSrv := mcpserver.NewMCPServer("agentleads", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	if err := pipeline_tools.RegisterPipelineTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register pipeline tools: %w", err)
	}
	if err := resources.RegisterStageResources(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}

	a.logger.Info("serving MCP on stdio", "data_dir", a.cfg.DataDir)
	return runStdioServer(mcpSrv)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
