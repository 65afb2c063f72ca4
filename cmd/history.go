package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/teemow/agentleads/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `List recent runs, newest first, or show the stages of one run.

Runs are recorded in a SQLite database (AGENTLEADS_DB, default in the user
cache directory).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if a.history == nil {
				return fmt.Errorf("run history is not available at %s", a.cfg.DBPath)
			}

			out := cmd.OutOrStdout()

			if len(args) == 1 {
				run, err := a.history.GetRun(ctx, args[0])
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("run %s not found", args[0])
					}
					return err
				}
				stages, err := a.history.Stages(ctx, run.ID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, struct {
						store.Run
						Stages []store.StageResult `json:"stages"`
					}{run, stages})
				}
				printRun(out, run, stages)
				return nil
			}

			runs, err := a.history.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}
			fmt.Fprintln(out, runsTable(out, runs, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func runsTable(out io.Writer, runs []store.Run, now time.Time) *table.Table {
	r := lipgloss.NewRenderer(out)
	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			dash(run.ZIP),
			countOrDash(run.TargetAgents),
			dash(run.EnrichmentLevel),
			run.Status,
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			dash(run.SpreadsheetURL),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("#45475A"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers("RUN", "ZIP", "AGENTS", "ENRICHMENT", "STATUS", "STARTED", "SPREADSHEET").
		Rows(rows...)
}

func printRun(out io.Writer, run store.Run, stages []store.StageResult) {
	p := newPrinter(out)
	p.Title("Run %s", run.ID)
	p.Info("Status:      %s", run.Status)
	p.Info("Started:     %s (%s)", run.StartedAt.Local().Format(time.DateTime), humanize.Time(run.StartedAt))
	if run.FinishedAt != nil {
		p.Info("Duration:    %s", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	if run.ZIP != "" {
		p.Info("ZIP:         %s", run.ZIP)
	}
	if run.TargetAgents > 0 {
		p.Info("Agents:      %d across %d pages", run.TargetAgents, run.Pages)
	}
	if run.EnrichmentLevel != "" {
		p.Info("Enrichment:  %s", run.EnrichmentLevel)
	}
	if run.SpreadsheetURL != "" {
		p.Info("Spreadsheet: %s", run.SpreadsheetURL)
	}
	if run.Error != "" {
		p.Error("Error:       %s", run.Error)
	}

	if len(stages) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, st := range stages {
		line := fmt.Sprintf("%-9s %s in, %s out  %s", st.Stage,
			humanize.Comma(int64(st.Input)), humanize.Comma(int64(st.Output)),
			st.Duration.Round(time.Millisecond))
		if st.Error != "" {
			p.Error("%s  %s", line, st.Error)
			continue
		}
		p.Info("%s", line)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func countOrDash(n int) string {
	if n <= 0 {
		return "-"
	}
	return strconv.Itoa(n)
}
