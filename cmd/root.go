package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the agentleads application
var rootCmd = &cobra.Command{
	Use:   "agentleads",
	Short: "Builds real-estate agent lead lists from Zillow, LinkedIn and Wiza",
	Long: `agentleads scrapes real-estate agents for a ZIP code from the Zillow agent
directory, finds their LinkedIn profiles, reveals contact details through Wiza
and uploads the result to a Google Sheets spreadsheet.

Each stage reads the previous stage's JSON file from the data directory and
writes its own, so stages can be run one at a time:

  0_agents.json -> 1_agents_with_linkedin.json -> 2_agents_with_email_and_phone.json

It can run as:
  - An interactive CLI that walks through all stages (default)
  - Individual stage commands
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "agentleads version %s\n" .Version}}`)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	addGlobalFlags(rootCmd)

	// Without a subcommand the interactive pipeline runs, global flags included.
	runCmd := newRunCmd()
	rootCmd.Args = cobra.NoArgs
	rootCmd.RunE = runCmd.RunE

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newScrapeCmd())
	rootCmd.AddCommand(newLinkedInCmd())
	rootCmd.AddCommand(newEnrichCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
