package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teemow/agentleads/internal/config"
	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/logging"
	"github.com/teemow/agentleads/internal/pipeline"
	"github.com/teemow/agentleads/internal/server"
	"github.com/teemow/agentleads/internal/store"
)

// globalFlags are shared by all subcommands.
type globalFlags struct {
	debug       bool
	configFile  string
	envFile     string
	dataDir     string
	metricsAddr string
}

var globals globalFlags

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&globals.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&globals.configFile, "config", "", "Path to a TOML config file (default: $XDG_CONFIG_HOME/agentleads/config.toml)")
	cmd.PersistentFlags().StringVar(&globals.envFile, "env-file", config.DefaultEnvFile, "Path to a .env file with API keys")
	cmd.PersistentFlags().StringVar(&globals.dataDir, "data-dir", "", "Directory holding the stage JSON files. Can also use AGENTLEADS_DATA_DIR env var.")
	cmd.PersistentFlags().StringVar(&globals.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics and health endpoints on this address (e.g. :9090)")
}

type appOptions struct {
	// interactiveAuth allows the browser consent flow during upload.
	interactiveAuth bool
	forceReauth     bool
	out             io.Writer
}

// app wires configuration, logging, instrumentation, history and the
// pipeline for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	instr    instrumentation.Config
	history  *store.Store
	factory  *pipeline.ServiceFactory
	pipeline *pipeline.Pipeline

	metricsServer *server.MetricsServer
	closers       []io.Closer
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	if err := config.LoadDotEnv(globals.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(config.LoadOptions{ConfigFile: globals.configFile})
	if err != nil {
		return nil, err
	}
	if globals.dataDir != "" {
		cfg.DataDir = globals.dataDir
	}
	if globals.debug {
		cfg.LogLevel = "debug"
	}

	logger, logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	a.instr = instrumentation.DefaultConfig()
	a.instr.ServiceVersion = version
	if globals.metricsAddr != "" {
		a.instr.Enabled = true
		a.instr.MetricsExporter = instrumentation.ExporterPrometheus
	}
	a.provider, err = instrumentation.NewProvider(ctx, a.instr)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	var metrics *instrumentation.Metrics
	if a.provider.Enabled() {
		metrics = a.provider.Metrics()
	}

	// Run history is best effort: the stage files are the source of truth.
	history, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Warn("run history disabled", logging.Err(err))
	} else {
		a.history = history
		a.closers = append(a.closers, history)
	}

	a.factory = pipeline.NewServiceFactory(cfg, metrics, logger)
	a.factory.Auth = pipeline.AuthOptions{
		Interactive: opts.interactiveAuth,
		ForceReauth: opts.forceReauth,
		OpenBrowser: openBrowser,
		Out:         opts.out,
	}

	pipeOpts := pipeline.Options{
		DataDir: cfg.DataDir,
		Factory: a.factory,
		Metrics: metrics,
		Logger:  logger,
	}
	if a.history != nil {
		pipeOpts.History = a.history
	}
	a.pipeline, err = pipeline.New(pipeOpts)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// startMetricsServer starts the Prometheus endpoint when --metrics-addr is set.
func (a *app) startMetricsServer(health *server.HealthChecker) error {
	if globals.metricsAddr == "" {
		return nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    globals.metricsAddr,
		InstrumentationProvider: a.provider,
		Health:                  health,
		Logger:                  a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics server: %w", err)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("metrics server failed to start: %w", err)
	}
	a.logger.Info("metrics server started", "addr", metricsServer.Addr())

	a.metricsServer = metricsServer
	return nil
}

// Close stops the metrics server, flushes telemetry and releases the history
// database and log file.
func (a *app) Close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown failed", logging.Err(err))
		}
		cancel()
	}
	if a.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		if err := a.provider.Shutdown(ctx); err != nil {
			a.logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}
