package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/pipeline"
	"github.com/teemow/agentleads/internal/store"
)

// runAnswers holds the choices given as flags. Nil pointers are asked for.
type runAnswers struct {
	zip           string
	targetAgents  int
	linkedin      *bool
	enrichment    agents.EnrichmentLevel
	upload        *bool
	yes           bool
	createFolders bool
}

func newRunCmd() *cobra.Command {
	var (
		zip           string
		targetAgents  int
		linkedin      bool
		enrich        string
		upload        bool
		yes           bool
		createFolders bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all stages interactively",
		Long: `Run walks through all stages, asking before each optional one:

  1. Scrape agents for a ZIP code from the Zillow directory
  2. Find LinkedIn profiles for the scraped agents
  3. Reveal contact details through Wiza
  4. Upload the result to a new Google Sheets spreadsheet

Every question can be answered with a flag instead, which allows running
without a terminal:

  agentleads run --zip 90210 --agents 50 --linkedin --enrich full --upload`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			answers := runAnswers{
				zip:           zip,
				targetAgents:  targetAgents,
				yes:           yes,
				createFolders: createFolders,
			}
			if cmd.Flags().Changed("linkedin") {
				answers.linkedin = &linkedin
			}
			if cmd.Flags().Changed("upload") {
				answers.upload = &upload
			}
			if enrich != "" {
				level, err := agents.ParseEnrichmentLevel(enrich)
				if err != nil {
					return err
				}
				answers.enrichment = level
			}
			if zip != "" && !agents.ValidZIP(zip) {
				return fmt.Errorf("invalid ZIP code %q: must be 5 digits", zip)
			}
			if cmd.Flags().Changed("agents") && targetAgents <= 0 {
				return fmt.Errorf("--agents must be positive")
			}

			a, err := newApp(cmd.Context(), appOptions{interactiveAuth: true, out: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.startMetricsServer(nil); err != nil {
				return err
			}

			s := &runSession{
				pipeline:    a.pipeline,
				answers:     answers,
				ask:         newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
				print:       newPrinter(cmd.OutOrStdout()),
				interactive: stdinIsTerminal(),
			}
			return s.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&zip, "zip", "", "ZIP code to scrape")
	cmd.Flags().IntVar(&targetAgents, "agents", 0, "Number of agents to scrape (menu: 10, 50, 100, 200, 350)")
	cmd.Flags().BoolVar(&linkedin, "linkedin", false, "Find LinkedIn profiles (--linkedin=false to skip)")
	cmd.Flags().StringVar(&enrich, "enrich", "", "Enrichment level: none, partial, phone or full")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the result to Google Sheets (--upload=false to skip)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Answer yes to every y/n question not set by a flag")
	cmd.Flags().BoolVar(&createFolders, "create-folders", false, "Create missing Drive folders instead of failing")

	return cmd
}

// runSession is one interactive walk through the stages.
type runSession struct {
	pipeline    *pipeline.Pipeline
	answers     runAnswers
	ask         *prompter
	print       *printer
	interactive bool
}

func (s *runSession) Run(ctx context.Context) error {
	s.print.Title("Welcome to the Agent Data Enrichment Tool!")

	zip, err := s.zip()
	if err != nil {
		return err
	}
	target, err := s.targetAgents()
	if err != nil {
		return err
	}
	pages := agents.PagesFor(target)

	s.print.Step("Will scrape approximately %d agents across %d pages...", target, pages)

	exec, err := s.pipeline.Start(ctx, store.Run{ZIP: zip, TargetAgents: target, Pages: pages})
	if err != nil {
		return err
	}

	runErr := s.stages(ctx, exec, zip, pages, target)
	report := exec.Finish(ctx, runErr)
	if runErr != nil {
		return runErr
	}

	s.print.Success("\nProcess completed successfully!")
	s.print.Muted("Run %s", report.RunID)
	return nil
}

func (s *runSession) stages(ctx context.Context, exec *pipeline.Execution, zip string, pages, target int) error {
	if _, err := exec.Scrape(ctx, zip, pages, target); err != nil {
		s.print.Error("Error during Zillow scraping: %v", err)
		return err
	}

	linkedin, err := s.yesNo(s.answers.linkedin, "linkedin", "Do you want to scrape LinkedIn profiles from Zillow profiles?")
	if err != nil {
		return err
	}
	if linkedin {
		s.print.Step("Starting LinkedIn profile scraping...")
		report, err := exec.FindLinkedIn(ctx)
		if err != nil {
			s.print.Error("Error during LinkedIn profile scraping: %v", err)
			return err
		}
		s.print.Success("LinkedIn profile scraping completed: %d of %d agents matched.", report.Output, report.Input)
	}

	if !agents.Exists(s.pipeline.DataPath(agents.LinkedInFile)) {
		s.print.Warn("\nNo %s file found!", agents.LinkedInFile)
		s.print.Info("Please provide the file and run the script again.")
		return fmt.Errorf("%w: %s", pipeline.ErrMissingInput, agents.LinkedInFile)
	}

	level, err := s.enrichment()
	if err != nil {
		return err
	}
	if level == agents.EnrichNone {
		s.print.Step("Copying LinkedIn data without enrichment...")
	} else {
		s.print.Step("Starting contact information enrichment with level: %s", level)
	}
	report, err := exec.Enrich(ctx, level)
	if err != nil {
		s.print.Error("Error during enrichment: %v", err)
		return err
	}
	if level == agents.EnrichNone {
		s.print.Info("Created %s as a copy of %s", agents.ContactsFile, agents.LinkedInFile)
	} else {
		s.print.Success("\nResults saved to %s", report.OutputFile)
	}

	upload, err := s.yesNo(s.answers.upload, "upload", "Do you want to upload the results to Google Sheets?")
	if err != nil {
		return err
	}
	if upload {
		s.print.Step("Uploading data to Google Sheets...")
		result, err := exec.Upload(ctx, s.answers.createFolders)
		if err != nil {
			s.print.Error("Error during Google Sheets upload: %v", err)
			return err
		}
		s.print.Success("Successfully uploaded data to Google Sheets (ID: %s)", result.SpreadsheetID)
		if result.URL != "" {
			s.print.Info("%s", result.URL)
		}
	}
	return nil
}

func (s *runSession) zip() (string, error) {
	if s.answers.zip != "" {
		return s.answers.zip, nil
	}
	if err := s.requireTerminal("zip"); err != nil {
		return "", err
	}
	return s.ask.ZIP()
}

func (s *runSession) targetAgents() (int, error) {
	if s.answers.targetAgents > 0 {
		return s.answers.targetAgents, nil
	}
	if err := s.requireTerminal("agents"); err != nil {
		return 0, err
	}
	return s.ask.AgentCount()
}

func (s *runSession) enrichment() (agents.EnrichmentLevel, error) {
	if s.answers.enrichment != "" {
		return s.answers.enrichment, nil
	}
	if err := s.requireTerminal("enrich"); err != nil {
		return "", err
	}
	return s.ask.Enrichment()
}

func (s *runSession) yesNo(answer *bool, flag, question string) (bool, error) {
	if answer != nil {
		return *answer, nil
	}
	if s.answers.yes {
		return true, nil
	}
	if err := s.requireTerminal(flag); err != nil {
		return false, err
	}
	return s.ask.YesNo(question)
}

var errNotInteractive = errors.New("stdin is not a terminal")

func (s *runSession) requireTerminal(flag string) error {
	if s.interactive {
		return nil
	}
	return fmt.Errorf("%w: pass --%s to run without prompts", errNotInteractive, flag)
}
