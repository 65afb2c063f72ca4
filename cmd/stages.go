package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/pipeline"
	"github.com/teemow/agentleads/internal/store"
)

func newScrapeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "scrape <zip> <pages>",
		Short: "Scrape agents for a ZIP code from the Zillow directory",
		Long: fmt.Sprintf(`Scrape the Zillow agent directory of a ZIP code and write %s.

Each directory page lists about %d agents.`, agents.AgentsFile, agents.AgentsPerPage),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			zip := args[0]
			if !agents.ValidZIP(zip) {
				return fmt.Errorf("invalid ZIP code %q: must be 5 digits", zip)
			}
			pages, err := strconv.Atoi(args[1])
			if err != nil || pages <= 0 {
				return fmt.Errorf("invalid page count %q: must be a positive number", args[1])
			}

			run := store.Run{ZIP: zip, Pages: pages, TargetAgents: limit}
			return runSingleStage(cmd, appOptions{}, run, func(ctx context.Context, exec *pipeline.Execution) error {
				_, err := exec.Scrape(ctx, zip, pages, limit)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&limit, "agents", 0, "Keep at most this many agents (0 keeps all)")
	return cmd
}

func newLinkedInCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "linkedin",
		Short: "Find LinkedIn profiles for scraped agents",
		Long: fmt.Sprintf(`Look up the LinkedIn profile of every agent in %s and write
%s.`, agents.AgentsFile, agents.LinkedInFile),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingleStage(cmd, appOptions{}, store.Run{}, func(ctx context.Context, exec *pipeline.Execution) error {
				_, err := exec.FindLinkedIn(ctx)
				return err
			})
		},
	}
}

func newEnrichCmd() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Reveal contact details for agents with a LinkedIn profile",
		Long: fmt.Sprintf(`Reveal emails and phone numbers through Wiza for the agents in %s and
write %s.

Levels:
  none     No additional data (copies the LinkedIn file)
  partial  Find email only
  phone    Find phone numbers only
  full     Find both email and phone numbers

Without --level the level is asked for interactively.`, agents.LinkedInFile, agents.ContactsFile),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var enrichment agents.EnrichmentLevel
			if level != "" {
				l, err := agents.ParseEnrichmentLevel(level)
				if err != nil {
					return err
				}
				enrichment = l
			} else {
				if !stdinIsTerminal() {
					return fmt.Errorf("%w: pass --level to run without prompts", errNotInteractive)
				}
				l, err := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).Enrichment()
				if err != nil {
					return err
				}
				enrichment = l
			}

			run := store.Run{EnrichmentLevel: string(enrichment)}
			return runSingleStage(cmd, appOptions{}, run, func(ctx context.Context, exec *pipeline.Execution) error {
				_, err := exec.Enrich(ctx, enrichment)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Enrichment level: none, partial, phone, full (or 1-4)")
	return cmd
}

func newUploadCmd() *cobra.Command {
	var createFolders bool

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload agents to a new Google Sheets spreadsheet",
		Long: fmt.Sprintf(`Create a spreadsheet in the configured Drive folder and fill it with the
agents of %s, joined with any contacts revealed in %s.

Runs the browser consent flow when no Google token is cached.`, agents.LinkedInFile, agents.ContactsFile),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := appOptions{interactiveAuth: true, out: cmd.ErrOrStderr()}
			return runSingleStage(cmd, opts, store.Run{}, func(ctx context.Context, exec *pipeline.Execution) error {
				_, err := exec.Upload(ctx, createFolders)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&createFolders, "create-folders", false, "Create missing Drive folders instead of failing")
	return cmd
}

// runSingleStage records a run holding one stage and prints its report.
func runSingleStage(cmd *cobra.Command, opts appOptions, run store.Run, fn func(context.Context, *pipeline.Execution) error) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.startMetricsServer(nil); err != nil {
		return err
	}

	exec, err := a.pipeline.Start(ctx, run)
	if err != nil {
		return err
	}
	stageErr := fn(ctx, exec)
	report := exec.Finish(ctx, stageErr)

	printReport(newPrinter(cmd.OutOrStdout()), report)
	return stageErr
}

func printReport(p *printer, report *pipeline.Report) {
	for _, st := range report.Stages {
		if st.Error != "" {
			p.Error("%s failed after %s: %s", st.Stage, st.Duration.Round(time.Millisecond), st.Error)
			continue
		}
		p.Success("%s: %d in, %d out (%s)", st.Stage, st.Input, st.Output, st.Duration.Round(time.Millisecond))
		if st.OutputFile != "" {
			p.Info("  wrote %s", st.OutputFile)
		}
	}
	if report.Upload != nil {
		p.Info("Spreadsheet %s (ID: %s)", report.Upload.Name, report.Upload.SpreadsheetID)
		if report.Upload.URL != "" {
			p.Info("  %s", report.Upload.URL)
		}
	}
	p.Muted("Run %s %s", report.RunID, report.Status)
}
