package pipeline_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/google"
	"github.com/teemow/agentleads/internal/linkedin"
	"github.com/teemow/agentleads/internal/pipeline"
	"github.com/teemow/agentleads/internal/server"
	"github.com/teemow/agentleads/internal/sheets"
	"github.com/teemow/agentleads/internal/store"
	"github.com/teemow/agentleads/internal/zillow"
)

type stubStages struct {
	limit       int
	pages       int
	level       agents.EnrichmentLevel
	uploaderErr error
	scrapeErr   error
}

func (s *stubStages) Scraper(limit int) (pipeline.Scraper, error) {
	s.limit = limit
	return s, nil
}
func (s *stubStages) Finder() (pipeline.ProfileFinder, error)     { return s, nil }
func (s *stubStages) Enricher() (pipeline.ContactEnricher, error) { return s, nil }
func (s *stubStages) Uploader(context.Context, bool) (pipeline.SheetUploader, error) {
	if s.uploaderErr != nil {
		return nil, s.uploaderErr
	}
	return s, nil
}

func (s *stubStages) Scrape(_ context.Context, _ string, pages int) ([]agents.Office, error) {
	s.pages = pages
	if s.scrapeErr != nil {
		return nil, s.scrapeErr
	}
	return []agents.Office{{Agents: []agents.Agent{
		{Name: "Ann", ZillowProfile: "https://www.zillow.com/profile/ann"},
		{Name: "Bob", ZillowProfile: "https://www.zillow.com/profile/bob"},
	}}}, nil
}

func (s *stubStages) Find(_ context.Context, offices []agents.Office) ([]agents.Office, linkedin.Stats, error) {
	all := agents.Flatten(offices)
	found := []agents.Agent{all[0]}
	found[0].LinkedIn = "https://www.linkedin.com/in/ann"
	return []agents.Office{offices[0].WithAgents(found)}, linkedin.Stats{Total: len(all), Processed: len(all), Found: 1}, nil
}

func (s *stubStages) Enrich(_ context.Context, offices []agents.Office, level agents.EnrichmentLevel) ([]agents.ContactResult, error) {
	s.level = level
	var out []agents.ContactResult
	for _, a := range agents.Flatten(offices) {
		out = append(out, agents.ContactResult{AgentName: a.Name, LinkedInURL: a.LinkedIn, Email: "ann@example.com", Status: agents.ContactFound})
	}
	return out, nil
}

func (s *stubStages) Upload(_ context.Context, offices []agents.Office, _ []agents.ContactResult) (*sheets.UploadResult, error) {
	return &sheets.UploadResult{SpreadsheetID: "sheet-1", URL: sheets.SpreadsheetURL("sheet-1"), Rows: agents.CountAgents(offices)}, nil
}

func newTestServerContext(t *testing.T) (*server.ServerContext, *stubStages, string) {
	t.Helper()
	dir := t.TempDir()

	history, err := store.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	stages := &stubStages{}
	p, err := pipeline.New(pipeline.Options{DataDir: dir, Factory: stages, History: history})
	require.NoError(t, err)

	sc, err := server.NewServerContext(context.Background(), p, history)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, stages, dir
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return tc.Text
}

func decodeReport(t *testing.T, result *mcp.CallToolResult) pipeline.Report {
	t.Helper()
	require.False(t, result.IsError, resultText(t, result))
	var report pipeline.Report
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &report))
	return report
}

func TestRegisterPipelineTools(t *testing.T) {
	sc, _, _ := newTestServerContext(t)
	s := mcpserver.NewMCPServer("test", "1.0.0", mcpserver.WithToolCapabilities(true))

	assert.NoError(t, RegisterPipelineTools(s, sc))
	assert.Error(t, RegisterPipelineTools(nil, sc))
	assert.Error(t, RegisterPipelineTools(s, nil))
}

func TestScrapeAgents(t *testing.T) {
	sc, stages, dir := newTestServerContext(t)

	result := callTool(t, handleScrapeAgents(sc), map[string]any{"zip": "90210", "agents": float64(50)})
	report := decodeReport(t, result)

	assert.Equal(t, store.StatusCompleted, report.Status)
	require.Len(t, report.Stages, 1)
	assert.Equal(t, 2, report.Stages[0].Output)
	assert.Equal(t, agents.PagesFor(50), stages.pages)
	assert.Equal(t, 50, stages.limit)
	assert.True(t, agents.Exists(filepath.Join(dir, agents.AgentsFile)))

	run, err := sc.History().GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, "90210", run.ZIP)
	assert.Equal(t, 50, run.TargetAgents)
}

func TestScrapeAgents_NoAgents(t *testing.T) {
	sc, stages, dir := newTestServerContext(t)
	stages.scrapeErr = fmt.Errorf("%w: all 4 pages failed: unauthorized", zillow.ErrNoAgents)

	result := callTool(t, handleScrapeAgents(sc), map[string]any{"zip": "90210", "agents": float64(50)})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "FIRECRAWL_API_KEY")
	assert.False(t, agents.Exists(filepath.Join(dir, agents.AgentsFile)))
}

func TestScrapeAgents_InvalidArguments(t *testing.T) {
	sc, _, _ := newTestServerContext(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing zip", map[string]any{"pages": float64(1)}, "5-digit ZIP"},
		{"short zip", map[string]any{"zip": "123", "pages": float64(1)}, "5-digit ZIP"},
		{"no size", map[string]any{"zip": "90210"}, "pages or agents is required"},
		{"negative pages", map[string]any{"zip": "90210", "pages": float64(-1)}, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, handleScrapeAgents(sc), tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestStageToolsInOrder(t *testing.T) {
	sc, stages, dir := newTestServerContext(t)

	decodeReport(t, callTool(t, handleScrapeAgents(sc), map[string]any{"zip": "90210", "pages": float64(1)}))

	report := decodeReport(t, callTool(t, handleFindLinkedIn(sc), nil))
	assert.Equal(t, 1, report.Stages[0].Output)

	report = decodeReport(t, callTool(t, handleEnrichContacts(sc), map[string]any{"level": "partial"}))
	assert.Equal(t, agents.EnrichPartial, stages.level)
	assert.True(t, agents.Exists(filepath.Join(dir, agents.ContactsFile)))
	assert.Equal(t, 1, report.Stages[0].Output)

	report = decodeReport(t, callTool(t, handleUploadToSheets(sc), map[string]any{"createFolders": true}))
	require.NotNil(t, report.Upload)
	assert.Equal(t, "sheet-1", report.Upload.SpreadsheetID)

	runs, err := sc.History().ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 4)
}

func TestFindLinkedIn_MissingInput(t *testing.T) {
	sc, _, _ := newTestServerContext(t)

	result := callTool(t, handleFindLinkedIn(sc), nil)
	assert.True(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, agents.AgentsFile)
	assert.Contains(t, text, "scrape_agents")

	runs, err := sc.History().ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusFailed, runs[0].Status)
}

func TestEnrichContacts_InvalidLevel(t *testing.T) {
	sc, _, _ := newTestServerContext(t)

	result := callTool(t, handleEnrichContacts(sc), map[string]any{"level": "everything"})
	assert.True(t, result.IsError)

	result = callTool(t, handleEnrichContacts(sc), nil)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "level is required")
}

func TestUploadToSheets_AuthRequired(t *testing.T) {
	sc, stages, dir := newTestServerContext(t)
	stages.uploaderErr = fmt.Errorf("failed to get Google token: %w", google.ErrAuthRequired)

	require.NoError(t, agents.WriteOffices(filepath.Join(dir, agents.LinkedInFile),
		[]agents.Office{{Agents: []agents.Agent{{Name: "Ann"}}}}))

	result := callTool(t, handleUploadToSheets(sc), nil)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "agentleads auth")
}

func TestListAndGetRuns(t *testing.T) {
	sc, _, _ := newTestServerContext(t)

	report := decodeReport(t, callTool(t, handleScrapeAgents(sc), map[string]any{"zip": "10001", "pages": float64(1)}))

	result := callTool(t, handleListRuns(sc), map[string]any{"limit": float64(5)})
	require.False(t, result.IsError)
	var runs []store.Run
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)

	result = callTool(t, handleGetRun(sc), map[string]any{"runId": report.RunID})
	require.False(t, result.IsError)
	var details runDetails
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &details))
	assert.Equal(t, "10001", details.ZIP)
	require.Len(t, details.Stages, 1)
	assert.Equal(t, "scrape", details.Stages[0].Stage)

	result = callTool(t, handleGetRun(sc), map[string]any{"runId": "missing"})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

func TestListRuns_WithoutHistory(t *testing.T) {
	p, err := pipeline.New(pipeline.Options{DataDir: t.TempDir(), Factory: &stubStages{}})
	require.NoError(t, err)
	sc, err := server.NewServerContext(context.Background(), p, nil)
	require.NoError(t, err)
	defer sc.Shutdown()

	result := callTool(t, handleListRuns(sc), nil)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not available")
}
