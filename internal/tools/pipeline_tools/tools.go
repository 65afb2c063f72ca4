package pipeline_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/google"
	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/pipeline"
	"github.com/teemow/agentleads/internal/server"
	"github.com/teemow/agentleads/internal/store"
	"github.com/teemow/agentleads/internal/tools/common"
	"github.com/teemow/agentleads/internal/zillow"
)

const defaultRunLimit = 10

// RegisterPipelineTools registers the stage and history tools with the MCP server
func RegisterPipelineTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("server and server context are required")
	}

	scrapeTool := mcp.NewTool("scrape_agents",
		mcp.WithDescription("Scrape real-estate agents for a ZIP code from the Zillow agent directory and save them to "+agents.AgentsFile),
		mcp.WithString(common.ArgZIP,
			mcp.Required(),
			mcp.Description("5-digit US ZIP code"),
		),
		mcp.WithNumber("pages",
			mcp.Description("Number of directory pages to scrape. Derived from 'agents' when omitted."),
		),
		mcp.WithNumber("agents",
			mcp.Description("Target number of agents (10, 50, 100, 200 or 350). Caps the number of agents kept."),
		),
	)
	s.AddTool(scrapeTool, common.InstrumentedStageHandler("scrape_agents", instrumentation.StageScrape, sc, handleScrapeAgents(sc)))

	linkedInTool := mcp.NewTool("find_linkedin_profiles",
		mcp.WithDescription("Find LinkedIn profiles for the scraped agents and save the agents that have one to "+agents.LinkedInFile),
	)
	s.AddTool(linkedInTool, common.InstrumentedStageHandler("find_linkedin_profiles", instrumentation.StageLinkedIn, sc, handleFindLinkedIn(sc)))

	enrichTool := mcp.NewTool("enrich_contacts",
		mcp.WithDescription("Reveal email addresses and phone numbers for agents with a LinkedIn profile and save them to "+agents.ContactsFile),
		mcp.WithString(common.ArgLevel,
			mcp.Required(),
			mcp.Enum(string(agents.EnrichNone), string(agents.EnrichPartial), string(agents.EnrichPhone), string(agents.EnrichFull)),
			mcp.Description("Enrichment level: none (copy only), partial (email), phone, full (email and phone)"),
		),
	)
	s.AddTool(enrichTool, common.InstrumentedStageHandler("enrich_contacts", instrumentation.StageEnrich, sc, handleEnrichContacts(sc)))

	uploadTool := mcp.NewTool("upload_to_sheets",
		mcp.WithDescription("Upload the agents with LinkedIn profiles, and any revealed contacts, to a new Google Sheets spreadsheet"),
		mcp.WithBoolean("createFolders",
			mcp.Description("Create missing folders of the destination path (default: false)"),
		),
	)
	s.AddTool(uploadTool, common.InstrumentedStageHandler("upload_to_sheets", instrumentation.StageUpload, sc, handleUploadToSheets(sc)))

	listRunsTool := mcp.NewTool("list_runs",
		mcp.WithDescription("List recent pipeline runs, most recent first"),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of runs to return (default: %d, 0 for all)", defaultRunLimit)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.AddTool(listRunsTool, common.InstrumentedToolHandler("list_runs", sc, handleListRuns(sc)))

	getRunTool := mcp.NewTool("get_run",
		mcp.WithDescription("Get a pipeline run and its stages"),
		mcp.WithString("runId",
			mcp.Required(),
			mcp.Description("The run id returned by a stage tool or list_runs"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.AddTool(getRunTool, common.InstrumentedToolHandler("get_run", sc, handleGetRun(sc)))

	return nil
}

func handleScrapeAgents(sc *server.ServerContext) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		zip, err := request.RequireString(common.ArgZIP)
		if err != nil || !agents.ValidZIP(zip) {
			return mcp.NewToolResultError("zip must be a 5-digit ZIP code"), nil
		}
		target := request.GetInt("agents", 0)
		pages := request.GetInt("pages", 0)
		if target < 0 || pages < 0 {
			return mcp.NewToolResultError("pages and agents must not be negative"), nil
		}
		if pages == 0 {
			if target == 0 {
				return mcp.NewToolResultError("pages or agents is required"), nil
			}
			pages = agents.PagesFor(target)
		}

		run := store.Run{ZIP: zip, TargetAgents: target, Pages: pages}
		return runStage(ctx, sc, run, func(exec *pipeline.Execution) error {
			_, err := exec.Scrape(ctx, zip, pages, target)
			return err
		})
	}
}

func handleFindLinkedIn(sc *server.ServerContext) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return runStage(ctx, sc, store.Run{}, func(exec *pipeline.Execution) error {
			_, err := exec.FindLinkedIn(ctx)
			return err
		})
	}
}

func handleEnrichContacts(sc *server.ServerContext) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := request.RequireString(common.ArgLevel)
		if err != nil {
			return mcp.NewToolResultError("level is required"), nil
		}
		level, err := agents.ParseEnrichmentLevel(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		run := store.Run{EnrichmentLevel: string(level)}
		return runStage(ctx, sc, run, func(exec *pipeline.Execution) error {
			_, err := exec.Enrich(ctx, level)
			return err
		})
	}
}

func handleUploadToSheets(sc *server.ServerContext) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		createFolders := request.GetBool("createFolders", false)
		return runStage(ctx, sc, store.Run{}, func(exec *pipeline.Execution) error {
			_, err := exec.Upload(ctx, createFolders)
			return err
		})
	}
}

func handleListRuns(sc *server.ServerContext) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		history := sc.History()
		if history == nil {
			return mcp.NewToolResultError("run history is not available"), nil
		}

		runs, err := history.ListRuns(ctx, request.GetInt("limit", defaultRunLimit))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list runs: %v", err)), nil
		}
		return jsonResult(runs)
	}
}

// runDetails is the get_run response.
type runDetails struct {
	store.Run
	Stages []store.StageResult `json:"stages"`
}

func handleGetRun(sc *server.ServerContext) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		history := sc.History()
		if history == nil {
			return mcp.NewToolResultError("run history is not available"), nil
		}
		id, err := request.RequireString("runId")
		if err != nil || id == "" {
			return mcp.NewToolResultError("runId is required"), nil
		}

		run, err := history.GetRun(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("run %s not found", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get run: %v", err)), nil
		}
		stages, err := history.Stages(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get run stages: %v", err)), nil
		}

		common.InvocationFromContext(ctx).WithRun(id, "")
		return jsonResult(runDetails{Run: run, Stages: stages})
	}
}

// runStage records a run holding the single stage executed by fn and
// returns its report.
func runStage(ctx context.Context, sc *server.ServerContext, run store.Run, fn func(*pipeline.Execution) error) (*mcp.CallToolResult, error) {
	exec, err := sc.Pipeline().Start(ctx, run)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stageErr := fn(exec)
	report := exec.Finish(ctx, stageErr)

	invocation := common.InvocationFromContext(ctx)
	invocation.RunID = report.RunID
	if n := len(report.Stages); n > 0 {
		invocation.WithAgents(report.Stages[n-1].Output)
	}

	if stageErr != nil {
		return mcp.NewToolResultError(stageErrorMessage(stageErr)), nil
	}
	return jsonResult(report)
}

// stageErrorMessage adds the next step to take for errors the caller can fix.
func stageErrorMessage(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrMissingInput):
		return fmt.Sprintf("%v. Run the previous stage first (scrape_agents, then find_linkedin_profiles).", err)
	case errors.Is(err, zillow.ErrNoAgents):
		return fmt.Sprintf("%v. Check the ZIP code and FIRECRAWL_API_KEY, then retry scrape_agents.", err)
	case errors.Is(err, google.ErrAuthRequired):
		return fmt.Sprintf(`%v.

Google authorization cannot be completed over MCP. To authorize access:
1. Run 'agentleads auth' in a terminal on this machine
2. Sign in with your Google account and grant access to Drive and Sheets
3. Retry upload_to_sheets

Note: You only need to authorize once. The token is refreshed automatically.`, err)
	default:
		return err.Error()
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
