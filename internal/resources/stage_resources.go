package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/server"
)

// URIs of the registered resources.
const (
	AgentsURI     = "agentleads://files/" + agents.AgentsFile
	LinkedInURI   = "agentleads://files/" + agents.LinkedInFile
	ContactsURI   = "agentleads://files/" + agents.ContactsFile
	RecentRunsURI = "agentleads://runs/recent"

	recentRunsLimit = 10
)

type stageFile struct {
	uri         string
	file        string
	name        string
	description string
	producer    string
}

var stageFiles = []stageFile{
	{AgentsURI, agents.AgentsFile, "Scraped agents", "Agents scraped from the Zillow directory, grouped by office", "scrape_agents"},
	{LinkedInURI, agents.LinkedInFile, "Agents with LinkedIn", "Agents with a LinkedIn profile URL", "find_linkedin_profiles"},
	{ContactsURI, agents.ContactsFile, "Agent contacts", "Contact details revealed through Wiza", "enrich_contacts"},
}

// RegisterStageResources registers one resource per handoff file and, when
// run history is available, the recent runs.
func RegisterStageResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil {
		return fmt.Errorf("mcp server is required")
	}
	if sc == nil {
		return fmt.Errorf("server context is required")
	}

	for _, f := range stageFiles {
		resource := mcp.NewResource(
			f.uri,
			f.name,
			mcp.WithResourceDescription(fmt.Sprintf("%s (%s)", f.description, f.file)),
			mcp.WithMIMEType("application/json"),
		)
		s.AddResource(resource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return handleStageFile(request, sc, f)
		})
	}

	if sc.History() != nil {
		runs := mcp.NewResource(
			RecentRunsURI,
			"Recent runs",
			mcp.WithResourceDescription(fmt.Sprintf("The %d most recent pipeline runs, newest first", recentRunsLimit)),
			mcp.WithMIMEType("application/json"),
		)
		s.AddResource(runs, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return handleRecentRuns(ctx, request, sc)
		})
	}

	return nil
}

func handleStageFile(request mcp.ReadResourceRequest, sc *server.ServerContext, f stageFile) ([]mcp.ResourceContents, error) {
	data, err := os.ReadFile(sc.Pipeline().DataPath(f.file))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s has not been written yet, run %s first", f.file, f.producer)
		}
		return nil, fmt.Errorf("failed to read %s: %w", f.file, err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func handleRecentRuns(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	runs, err := sc.History().ListRuns(ctx, recentRunsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	jsonData, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runs: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
