// Package zillow collects agent names and profile links from the Zillow agent
// directory of a ZIP code.
package zillow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/firecrawl"
	"github.com/teemow/agentleads/internal/logging"
)

// ErrNoAgents is returned when no directory page yielded an agent.
var ErrNoAgents = errors.New("no agents found in the directory")

const directoryBase = "https://www.zillow.com/professionals/real-estate-agent-reviews/"

// Prompt guides extraction of a directory page.
const Prompt = `Extract the name, and Zillow profile URL for each real estate agent. zillow_profile looks like "https://www.zillow.com/profile/userid"`

// Schema is the JSON schema of one extracted directory page.
var Schema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "agents": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "zillow_profile": {"type": "string"}
        },
        "required": ["name", "zillow_profile"]
      }
    }
  },
  "required": ["agents"]
}`)

// Extractor runs a structured extraction over a set of pages.
type Extractor interface {
	Extract(ctx context.Context, req firecrawl.ExtractRequest) (json.RawMessage, error)
}

// DirectoryURL returns the directory page for zip.
func DirectoryURL(zip string, page int) string {
	return fmt.Sprintf("%s%s/?page=%d", directoryBase, url.PathEscape(zip), page)
}

// GenerateURLs returns directory pages 1 through pages.
func GenerateURLs(zip string, pages int) []string {
	if pages <= 0 {
		return []string{}
	}
	urls := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		urls = append(urls, DirectoryURL(zip, page))
	}
	return urls
}

// Scraper extracts agents from directory pages.
type Scraper struct {
	extractor Extractor
	logger    *slog.Logger

	// Limit caps the number of agents returned. Zero means no cap.
	Limit int
}

// NewScraper creates a scraper. Spacing between page requests is the
// extractor's concern.
func NewScraper(extractor Extractor, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{extractor: extractor, logger: logger}
}

type pageResult struct {
	Agents []agents.Agent `json:"agents"`
}

// Scrape extracts agents from the first pages directory pages of zip. A page
// that fails is logged and contributes no agents. The result always holds
// exactly one office. When no page yields an agent Scrape returns ErrNoAgents,
// wrapping the last page error if every page failed.
func (s *Scraper) Scrape(ctx context.Context, zip string, pages int) ([]agents.Office, error) {
	if !agents.ValidZIP(zip) {
		return nil, fmt.Errorf("invalid zip code %q", zip)
	}

	urls := GenerateURLs(zip, pages)
	logger := logging.WithStage(s.logger, "scrape").With(logging.ZIP(zip))
	logger.Info("scraping agent directory", slog.Int("pages", len(urls)))

	seen := make(map[string]bool)
	all := []agents.Agent{}
	failed := 0
	var lastErr error

	for i, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.Limit > 0 && len(all) >= s.Limit {
			break
		}

		found, err := s.scrapePage(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("failed to extract directory page",
				slog.Int("page", i+1), logging.URL(pageURL), logging.Err(err))
			failed++
			lastErr = err
			continue
		}

		added := 0
		for _, a := range found {
			if a.Name == "" && a.ZillowProfile == "" {
				continue
			}
			if a.ZillowProfile != "" {
				if seen[a.ZillowProfile] {
					continue
				}
				seen[a.ZillowProfile] = true
			}
			all = append(all, a)
			added++
		}
		logger.Debug("extracted directory page", slog.Int("page", i+1), slog.Int("agents", added))
	}

	if s.Limit > 0 && len(all) > s.Limit {
		all = all[:s.Limit]
	}

	if len(all) == 0 {
		if failed > 0 && failed == len(urls) {
			return nil, fmt.Errorf("%w: all %d pages failed: %w", ErrNoAgents, failed, lastErr)
		}
		return nil, ErrNoAgents
	}

	logger.Info("scraped agent directory", slog.Int("agents", len(all)))
	return []agents.Office{{Agents: all}}, nil
}

func (s *Scraper) scrapePage(ctx context.Context, pageURL string) ([]agents.Agent, error) {
	data, err := s.extractor.Extract(ctx, firecrawl.ExtractRequest{
		URLs:   []string{pageURL},
		Prompt: Prompt,
		Schema: Schema,
	})
	if err != nil {
		return nil, err
	}

	var page pageResult
	if len(data) > 0 {
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("failed to parse extracted page: %w", err)
		}
	}
	return page.Agents, nil
}
