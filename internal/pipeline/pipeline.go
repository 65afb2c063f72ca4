package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/linkedin"
	"github.com/teemow/agentleads/internal/logging"
	"github.com/teemow/agentleads/internal/sheets"
	"github.com/teemow/agentleads/internal/store"
)

// ErrMissingInput is returned when a stage's input handoff file does not exist.
var ErrMissingInput = errors.New("input file not found")

// Scraper collects agents from the Zillow directory of a ZIP code.
type Scraper interface {
	Scrape(ctx context.Context, zip string, pages int) ([]agents.Office, error)
}

// ProfileFinder attaches LinkedIn profile URLs to agents.
type ProfileFinder interface {
	Find(ctx context.Context, offices []agents.Office) ([]agents.Office, linkedin.Stats, error)
}

// ContactEnricher reveals contact details for agents with a LinkedIn profile.
type ContactEnricher interface {
	Enrich(ctx context.Context, offices []agents.Office, level agents.EnrichmentLevel) ([]agents.ContactResult, error)
}

// SheetUploader publishes agents to a new spreadsheet.
type SheetUploader interface {
	Upload(ctx context.Context, offices []agents.Office, contacts []agents.ContactResult) (*sheets.UploadResult, error)
}

// Factory builds stage implementations on demand.
type Factory interface {
	Scraper(limit int) (Scraper, error)
	Finder() (ProfileFinder, error)
	Enricher() (ContactEnricher, error)
	Uploader(ctx context.Context, createFolders bool) (SheetUploader, error)
}

// History persists runs and their stages. *store.Store implements it.
type History interface {
	CreateRun(ctx context.Context, run store.Run) (store.Run, error)
	FinishRun(ctx context.Context, id, status, spreadsheetID, spreadsheetURL string, runErr error) error
	SetEnrichmentLevel(ctx context.Context, id, level string) error
	RecordStage(ctx context.Context, r store.StageResult) error
}

// Options configures a Pipeline.
type Options struct {
	// DataDir holds the handoff files (default: current directory).
	DataDir string

	Factory Factory

	// History is optional; without it runs are not recorded.
	History History

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Pipeline executes stages.
type Pipeline struct {
	dataDir string
	factory Factory
	history History
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("factory is required")
	}
	if opts.DataDir == "" {
		opts.DataDir = "."
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		dataDir: opts.DataDir,
		factory: opts.Factory,
		history: opts.History,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     time.Now,
	}, nil
}

// DataPath returns the path of a handoff file.
func (p *Pipeline) DataPath(name string) string {
	return filepath.Join(p.dataDir, name)
}

// Plan selects the stages of a full run.
type Plan struct {
	ZIP          string
	TargetAgents int

	// Pages defaults to enough directory pages for TargetAgents.
	Pages int

	// SkipScrape reuses an existing agents file.
	SkipScrape bool

	LinkedIn bool

	// Enrichment is the contact enrichment level. Empty skips the stage.
	Enrichment agents.EnrichmentLevel

	Upload        bool
	CreateFolders bool
}

// Validate checks the plan before any stage runs.
func (pl *Plan) Validate() error {
	if !pl.SkipScrape {
		if !agents.ValidZIP(pl.ZIP) {
			return fmt.Errorf("invalid ZIP code %q: must be 5 digits", pl.ZIP)
		}
		if pl.Pages <= 0 && pl.TargetAgents <= 0 {
			return fmt.Errorf("target agents or pages is required")
		}
	}
	if pl.Enrichment != "" && !pl.Enrichment.Valid() {
		return fmt.Errorf("invalid enrichment level %q", pl.Enrichment)
	}
	return nil
}

func (pl *Plan) pages() int {
	if pl.Pages > 0 {
		return pl.Pages
	}
	return agents.PagesFor(pl.TargetAgents)
}

// StageReport summarises one executed stage.
type StageReport struct {
	Stage      string        `json:"stage"`
	InputFile  string        `json:"input_file,omitempty"`
	OutputFile string        `json:"output_file,omitempty"`
	Input      int           `json:"input"`
	Output     int           `json:"output"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Report summarises a finished run.
type Report struct {
	RunID  string               `json:"run_id"`
	Status string               `json:"status"`
	Stages []StageReport        `json:"stages"`
	Upload *sheets.UploadResult `json:"upload,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// Run executes the stages selected by plan in order and stops at the first
// failure. The returned report is non-nil once the run has started.
func (p *Pipeline) Run(ctx context.Context, plan Plan) (*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	exec, err := p.Start(ctx, store.Run{
		ZIP:             plan.ZIP,
		TargetAgents:    plan.TargetAgents,
		Pages:           plan.pages(),
		EnrichmentLevel: string(plan.Enrichment),
	})
	if err != nil {
		return nil, err
	}

	runErr := p.runPlan(ctx, exec, plan)
	return exec.Finish(ctx, runErr), runErr
}

func (p *Pipeline) runPlan(ctx context.Context, exec *Execution, plan Plan) error {
	if !plan.SkipScrape {
		if _, err := exec.Scrape(ctx, plan.ZIP, plan.pages(), plan.TargetAgents); err != nil {
			return err
		}
	}
	if plan.LinkedIn {
		if _, err := exec.FindLinkedIn(ctx); err != nil {
			return err
		}
	}
	if plan.Enrichment != "" {
		if _, err := exec.Enrich(ctx, plan.Enrichment); err != nil {
			return err
		}
	}
	if plan.Upload {
		if _, err := exec.Upload(ctx, plan.CreateFolders); err != nil {
			return err
		}
	}
	return nil
}

// Start records a new run and returns a handle for executing its stages.
func (p *Pipeline) Start(ctx context.Context, run store.Run) (*Execution, error) {
	if p.history != nil {
		created, err := p.history.CreateRun(ctx, run)
		if err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
		run = created
	} else {
		run.ID = uuid.NewString()
		run.Status = store.StatusRunning
		run.StartedAt = p.now().UTC()
	}

	logger := logging.WithRun(p.logger, run.ID)
	if run.ZIP != "" {
		logger = logger.With(logging.ZIP(run.ZIP))
	}
	logger.Info("run started")

	return &Execution{p: p, run: run, logger: logger}, nil
}
