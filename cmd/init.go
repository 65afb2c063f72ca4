package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an example agents file",
		Long: fmt.Sprintf(`Write an example %s to the data directory.

Edit it with real offices and agents to run the later stages without
scraping. An existing file is left untouched.`, agents.AgentsFile),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(globals.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(config.LoadOptions{ConfigFile: globals.configFile})
			if err != nil {
				return err
			}
			if globals.dataDir != "" {
				cfg.DataDir = globals.dataDir
			}
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}

			p := newPrinter(cmd.OutOrStdout())
			path := cfg.DataPath(agents.AgentsFile)
			if agents.Exists(path) {
				p.Warn("%s already exists, leaving it unchanged.", path)
				return nil
			}
			if err := agents.WriteExample(path); err != nil {
				p.Error("Error creating example file: %v", err)
				return err
			}
			p.Success("\nCreated example file: %s", path)
			p.Info("Please edit this file with your actual data and run the script again.")
			return nil
		},
	}
}
