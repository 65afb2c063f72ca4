package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/config"
	"github.com/teemow/agentleads/internal/pipeline"
	"github.com/teemow/agentleads/internal/server"
	"github.com/teemow/agentleads/internal/tools/pipeline_tools"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Render the registered MCP tools as a markdown reference, grouped by
pipeline stage. Tools are registered against an offline pipeline; no API is
contacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			markdown, err := toolsMarkdown()
			if err != nil {
				return err
			}

			if outputFile == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), markdown)
				return err
			}
			if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputFile, err)
			}
			newPrinter(cmd.ErrOrStderr()).Success("Documentation written to %s", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// toolsMarkdown registers the tools against an offline pipeline and renders
// their definitions. No API is contacted.
func toolsMarkdown() (string, error) {
	p, err := pipeline.New(pipeline.Options{
		Factory: pipeline.NewServiceFactory(config.Default(), nil, nil),
	})
	if err != nil {
		return "", err
	}

	serverContext, err := server.NewServerContext(context.Background(), p, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv := mcpserver.NewMCPServer("agentleads", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := pipeline_tools.RegisterPipelineTools(mcpSrv, serverContext); err != nil {
		return "", fmt.Errorf("failed to register pipeline tools: %w", err)
	}

	var tools []mcp.Tool
	for _, st := range mcpSrv.ListTools() {
		tools = append(tools, st.Tool)
	}
	return generateToolsMarkdown(tools), nil
}

// toolSection groups tools in the order the pipeline runs them.
type toolSection struct {
	title string
	tools []string
}

var toolSections = []toolSection{
	{title: "Pipeline Tools", tools: []string{"scrape_agents", "find_linkedin_profiles", "enrich_contacts", "upload_to_sheets"}},
	{title: "History Tools", tools: []string{"list_runs", "get_run"}},
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	byName := make(map[string]mcp.Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}

	sections := slices.Clone(toolSections)
	var other []string
	for _, tool := range tools {
		if sectionOf(tool.Name) == "" {
			other = append(other, tool.Name)
		}
	}
	if len(other) > 0 {
		sort.Strings(other)
		sections = append(sections, toolSection{title: "Other", tools: other})
	}

	var sb strings.Builder
	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("Tools served by `agentleads serve`. Generated from the registered tool definitions by `agentleads generate-docs`.\n\n")

	for _, sec := range sections {
		fmt.Fprintf(&sb, "- [%s](#%s)\n", sec.title, strings.ToLower(strings.ReplaceAll(sec.title, " ", "-")))
	}
	sb.WriteString("\n## Stage Files\n\n")
	sb.WriteString("Stages hand data to each other through JSON files in the data directory:\n\n")
	fmt.Fprintf(&sb, "1. `scrape_agents` writes `%s`\n", agents.AgentsFile)
	fmt.Fprintf(&sb, "2. `find_linkedin_profiles` reads it and writes `%s`\n", agents.LinkedInFile)
	fmt.Fprintf(&sb, "3. `enrich_contacts` reads the LinkedIn file and writes `%s`\n", agents.ContactsFile)
	sb.WriteString("4. `upload_to_sheets` publishes the LinkedIn agents joined with any revealed contacts\n\n")
	sb.WriteString("Only one stage runs at a time. Every call is recorded as a run, see `list_runs` and `get_run`.\n")

	for _, sec := range sections {
		fmt.Fprintf(&sb, "\n## %s\n", sec.title)
		for _, name := range sec.tools {
			if tool, ok := byName[name]; ok {
				sb.WriteString("\n")
				sb.WriteString(generateToolMarkdown(tool))
			}
		}
	}
	return sb.String()
}

func sectionOf(name string) string {
	for _, sec := range toolSections {
		if slices.Contains(sec.tools, name) {
			return sec.title
		}
	}
	return ""
}

func getCategoryFromToolName(name string) string {
	if title := sectionOf(name); title != "" {
		return title
	}
	return "Other"
}

// generateToolMarkdown renders one tool with its arguments, required
// arguments first.
func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
	if tool.Description != "" {
		sb.WriteString(tool.Description + "\n\n")
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		return sb.String()
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	required := func(name string) bool { return slices.Contains(tool.InputSchema.Required, name) }
	sort.Slice(names, func(i, j int) bool {
		if required(names[i]) != required(names[j]) {
			return required(names[i])
		}
		return names[i] < names[j]
	})

	sb.WriteString("**Arguments:**\n")
	for _, name := range names {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		presence := "optional"
		if required(name) {
			presence = "required"
		}
		desc, _ := prop["description"].(string)
		if desc == "" {
			desc = propertyType(prop) + " parameter"
		}
		fmt.Fprintf(&sb, "- `%s` (%s): %s", name, presence, desc)
		if enum, ok := prop["enum"].([]string); ok && len(enum) > 0 {
			fmt.Fprintf(&sb, " One of: `%s`.", strings.Join(enum, "`, `"))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func propertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}
