package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/logging"
	"github.com/teemow/agentleads/internal/sheets"
	"github.com/teemow/agentleads/internal/store"
	"github.com/teemow/agentleads/internal/zillow"
)

// Execution is one run in progress. Its methods run single stages and must
// not be called concurrently.
type Execution struct {
	p      *Pipeline
	run    store.Run
	logger *slog.Logger

	stages []StageReport
	upload *sheets.UploadResult
}

// ID returns the run id.
func (e *Execution) ID() string {
	return e.run.ID
}

// Scrape extracts agents for zip from pages directory pages and writes the
// agents file. A positive limit caps the number of agents kept.
func (e *Execution) Scrape(ctx context.Context, zip string, pages, limit int) (StageReport, error) {
	return e.runStage(ctx, instrumentation.StageScrape, "", agents.AgentsFile, func(ctx context.Context, logger *slog.Logger, r *StageReport) error {
		if !agents.ValidZIP(zip) {
			return fmt.Errorf("invalid ZIP code %q: must be 5 digits", zip)
		}
		if pages <= 0 {
			return fmt.Errorf("pages must be positive, got %d", pages)
		}
		r.Input = pages

		scraper, err := e.p.factory.Scraper(limit)
		if err != nil {
			return err
		}

		logger.Info("scraping agent directory", logging.ZIP(zip), slog.Int("pages", pages))
		offices, err := scraper.Scrape(ctx, zip, pages)
		if err != nil {
			return fmt.Errorf("failed to scrape agents: %w", err)
		}
		if agents.CountAgents(offices) == 0 {
			return fmt.Errorf("failed to scrape agents: %w", zillow.ErrNoAgents)
		}

		if err := agents.WriteOffices(e.p.DataPath(agents.AgentsFile), offices); err != nil {
			return err
		}
		r.Output = agents.CountAgents(offices)
		e.p.metrics.RecordAgents(ctx, instrumentation.StageScrape, instrumentation.OutcomeFound, r.Output)
		logger.Info("agents saved", slog.Int("agents", r.Output), slog.String("file", agents.AgentsFile))
		return nil
	})
}

// FindLinkedIn reads the agents file, looks up LinkedIn profiles and writes
// the agents that have one.
func (e *Execution) FindLinkedIn(ctx context.Context) (StageReport, error) {
	return e.runStage(ctx, instrumentation.StageLinkedIn, agents.AgentsFile, agents.LinkedInFile, func(ctx context.Context, logger *slog.Logger, r *StageReport) error {
		offices, err := agents.ReadOffices(e.p.DataPath(agents.AgentsFile))
		if err != nil {
			return err
		}
		r.Input = agents.CountAgents(offices)

		finder, err := e.p.factory.Finder()
		if err != nil {
			return err
		}

		found, stats, err := finder.Find(ctx, offices)
		if err != nil {
			return fmt.Errorf("failed to find LinkedIn profiles: %w", err)
		}

		if err := agents.WriteOffices(e.p.DataPath(agents.LinkedInFile), found); err != nil {
			return err
		}
		r.Output = agents.CountAgents(found)

		m := e.p.metrics
		m.RecordAgents(ctx, instrumentation.StageLinkedIn, instrumentation.OutcomeFound, stats.Found)
		m.RecordAgents(ctx, instrumentation.StageLinkedIn, instrumentation.OutcomeNotFound, stats.Processed-stats.Found-stats.Skipped)
		m.RecordAgents(ctx, instrumentation.StageLinkedIn, instrumentation.OutcomeSkipped, stats.Skipped)

		logger.Info("LinkedIn profiles saved",
			slog.Int("found", stats.Found),
			slog.Int("total", stats.Total),
			slog.Float64("success_rate", stats.SuccessRate()),
			slog.String("file", agents.LinkedInFile))
		return nil
	})
}

// Enrich reveals contact details at level and writes the contacts file.
// Level none copies the LinkedIn file unchanged.
func (e *Execution) Enrich(ctx context.Context, level agents.EnrichmentLevel) (StageReport, error) {
	return e.runStage(ctx, instrumentation.StageEnrich, agents.LinkedInFile, agents.ContactsFile, func(ctx context.Context, logger *slog.Logger, r *StageReport) error {
		if !level.Valid() {
			return fmt.Errorf("invalid enrichment level %q", level)
		}
		logger = logger.With(slog.String("level", string(level)))
		e.recordEnrichmentLevel(ctx, logger, level)

		src := e.p.DataPath(agents.LinkedInFile)
		dst := e.p.DataPath(agents.ContactsFile)

		offices, err := agents.ReadOffices(src)
		if err != nil {
			return err
		}
		r.Input = agents.CountAgents(offices)

		if level == agents.EnrichNone {
			logger.Info("copying LinkedIn data without enrichment")
			if err := agents.CopyFile(src, dst); err != nil {
				return err
			}
			r.Output = r.Input
			e.p.metrics.RecordAgents(ctx, instrumentation.StageEnrich, instrumentation.OutcomeSkipped, r.Input)
			return nil
		}

		enricher, err := e.p.factory.Enricher()
		if err != nil {
			return err
		}

		results, err := enricher.Enrich(ctx, offices, level)
		if err != nil {
			return fmt.Errorf("failed to enrich contacts: %w", err)
		}
		if err := agents.WriteContacts(dst, results); err != nil {
			return err
		}
		r.Output = len(results)

		outcomes := map[string]int{}
		for _, c := range results {
			outcomes[c.Status]++
		}
		for outcome, n := range outcomes {
			e.p.metrics.RecordAgents(ctx, instrumentation.StageEnrich, outcome, n)
		}

		logger.Info("contacts saved",
			slog.Int("found", outcomes[agents.ContactFound]),
			slog.Int("not_found", outcomes[agents.ContactNotFound]),
			slog.Int("failed", outcomes[agents.ContactFailed]),
			slog.String("file", agents.ContactsFile))
		return nil
	})
}

// Upload publishes the LinkedIn agents, joined with any revealed contacts,
// to a new spreadsheet.
func (e *Execution) Upload(ctx context.Context, createFolders bool) (*sheets.UploadResult, error) {
	var result *sheets.UploadResult
	_, err := e.runStage(ctx, instrumentation.StageUpload, agents.LinkedInFile, "", func(ctx context.Context, logger *slog.Logger, r *StageReport) error {
		offices, err := agents.ReadOffices(e.p.DataPath(agents.LinkedInFile))
		if err != nil {
			return err
		}
		r.Input = agents.CountAgents(offices)

		contacts, err := e.readContacts()
		if err != nil {
			return err
		}

		uploader, err := e.p.factory.Uploader(ctx, createFolders)
		if err != nil {
			return err
		}

		result, err = uploader.Upload(ctx, offices, contacts)
		if err != nil {
			return fmt.Errorf("failed to upload to Google Sheets: %w", err)
		}
		r.Output = result.Rows
		e.upload = result
		e.p.metrics.RecordAgents(ctx, instrumentation.StageUpload, instrumentation.OutcomeFound, result.Rows)

		logger.Info("uploaded to Google Sheets",
			slog.String("spreadsheet_id", result.SpreadsheetID),
			logging.URL(result.URL),
			slog.Int("rows", result.Rows))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// readContacts returns the revealed contacts, if any. After an enrichment
// with level none the contacts file holds offices, which yields no entries.
func (e *Execution) readContacts() ([]agents.ContactResult, error) {
	path := e.p.DataPath(agents.ContactsFile)
	if !agents.Exists(path) {
		return nil, nil
	}
	all, err := agents.ReadContacts(path)
	if err != nil {
		return nil, err
	}
	contacts := make([]agents.ContactResult, 0, len(all))
	for _, c := range all {
		if c.LinkedInURL != "" {
			contacts = append(contacts, c)
		}
	}
	return contacts, nil
}

type stageFunc func(ctx context.Context, logger *slog.Logger, r *StageReport) error

func (e *Execution) recordEnrichmentLevel(ctx context.Context, logger *slog.Logger, level agents.EnrichmentLevel) {
	if e.run.EnrichmentLevel == string(level) {
		return
	}
	e.run.EnrichmentLevel = string(level)
	if e.p.history == nil {
		return
	}
	if err := e.p.history.SetEnrichmentLevel(context.WithoutCancel(ctx), e.run.ID, string(level)); err != nil {
		logger.Warn("failed to record enrichment level", logging.Err(err))
	}
}

// runStage checks the stage input, runs fn and records the outcome in the
// history, metrics and a span.
func (e *Execution) runStage(ctx context.Context, stage, inputFile, outputFile string, fn stageFunc) (StageReport, error) {
	start := e.p.now()
	report := StageReport{Stage: stage, InputFile: inputFile, OutputFile: outputFile}

	ctx, span := instrumentation.StartStageSpan(ctx, stage,
		instrumentation.SpanAttrs{RunID: e.run.ID, ZIP: e.run.ZIP, File: outputFile}.KeyValues()...)
	defer span.End()

	logger := logging.WithStage(e.logger, stage)

	var err error
	if inputFile != "" && !agents.Exists(e.p.DataPath(inputFile)) {
		err = fmt.Errorf("%w: %s", ErrMissingInput, inputFile)
	} else {
		err = fn(ctx, logger, &report)
	}
	report.Duration = e.p.now().Sub(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		report.Error = err.Error()
		logger.Error("stage failed", logging.Err(err), slog.Duration("duration", report.Duration))
	} else {
		logger.Info("stage completed", slog.Duration("duration", report.Duration))
	}
	instrumentation.SetSpanStatus(span, err)
	span.SetAttributes(instrumentation.Agents(report.Output))
	e.p.metrics.RecordStage(ctx, stage, status, e.run.ZIP, report.Duration)

	if e.p.history != nil {
		rec := store.StageResult{
			RunID:      e.run.ID,
			Stage:      stage,
			InputFile:  inputFile,
			OutputFile: outputFile,
			Input:      report.Input,
			Output:     report.Output,
			StartedAt:  start.UTC(),
			Duration:   report.Duration,
			Error:      report.Error,
		}
		if herr := e.p.history.RecordStage(context.WithoutCancel(ctx), rec); herr != nil {
			logger.Warn("failed to record stage", logging.Err(herr))
		}
	}

	e.stages = append(e.stages, report)
	return report, err
}

// Finish marks the run completed, or failed when runErr is non-nil, and
// returns its report.
func (e *Execution) Finish(ctx context.Context, runErr error) *Report {
	report := &Report{
		RunID:  e.run.ID,
		Status: store.StatusCompleted,
		Stages: e.stages,
		Upload: e.upload,
	}
	if runErr != nil {
		report.Status = store.StatusFailed
		report.Error = runErr.Error()
	}

	var spreadsheetID, spreadsheetURL string
	if e.upload != nil {
		spreadsheetID = e.upload.SpreadsheetID
		spreadsheetURL = e.upload.URL
	}

	if e.p.history != nil {
		if err := e.p.history.FinishRun(context.WithoutCancel(ctx), e.run.ID, report.Status, spreadsheetID, spreadsheetURL, runErr); err != nil {
			e.logger.Warn("failed to record run result", logging.Err(err))
		}
	}

	if runErr != nil {
		e.logger.Error("run failed", logging.Err(runErr))
	} else {
		e.logger.Info("run completed", slog.Int("stages", len(e.stages)))
	}
	return report
}
