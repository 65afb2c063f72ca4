// Package linkedin looks up each agent's LinkedIn profile from their Zillow
// profile page.
package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/firecrawl"
	"github.com/teemow/agentleads/internal/logging"
)

// ErrNoAgents is returned when the input holds no agents at all.
var ErrNoAgents = errors.New("no agents found in the data")

// Schema is the JSON schema of the profile-page extraction.
var Schema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "linkedin_profile": {"type": "string"}
  },
  "required": ["linkedin_profile"]
}`)

// Extractor runs a structured extraction over a set of pages.
type Extractor interface {
	Extract(ctx context.Context, req firecrawl.ExtractRequest) (json.RawMessage, error)
}

// Stats summarises a Find call. Processed counts every agent handled,
// including the Skipped ones without a Zillow profile.
type Stats struct {
	Total     int
	Processed int
	Found     int
	Skipped   int
}

// SuccessRate is the percentage of processed agents with a profile.
func (s Stats) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Found) / float64(s.Processed) * 100
}

// Finder resolves LinkedIn profiles for agents.
type Finder struct {
	extractor   Extractor
	logger      *slog.Logger
	concurrency int
}

// NewFinder creates a finder that runs up to concurrency lookups at once.
func NewFinder(extractor Extractor, concurrency int, logger *slog.Logger) *Finder {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{extractor: extractor, logger: logger, concurrency: concurrency}
}

// Find returns the offices with only the agents that have a LinkedIn profile,
// each with its linkedin field set. Offices left without agents are dropped.
// A failed lookup is logged and the agent is dropped.
func (f *Finder) Find(ctx context.Context, offices []agents.Office) ([]agents.Office, Stats, error) {
	stats := Stats{Total: agents.CountAgents(offices)}
	if stats.Total == 0 {
		return nil, stats, ErrNoAgents
	}

	logger := logging.WithStage(f.logger, "linkedin")
	logger.Info("looking up LinkedIn profiles", slog.Int("agents", stats.Total))

	// profiles[i][j] holds the profile found for offices[i].Agents[j].
	profiles := make([][]string, len(offices))
	for i, o := range offices {
		profiles[i] = make([]string, len(o.Agents))
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, o := range offices {
		for j, a := range o.Agents {
			if a.ZillowProfile == "" {
				mu.Lock()
				stats.Processed++
				stats.Skipped++
				mu.Unlock()
				logger.Debug("skipping agent without Zillow profile", logging.Agent(a.Name))
				continue
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				profile, err := f.lookup(gctx, a.ZillowProfile)
				if err != nil && gctx.Err() != nil {
					return gctx.Err()
				}

				mu.Lock()
				defer mu.Unlock()
				stats.Processed++
				status := logging.StatusNotFound
				if err != nil {
					status = logging.StatusError
					logger.Warn("failed to extract LinkedIn profile",
						logging.Agent(a.Name), logging.URL(a.ZillowProfile), logging.Err(err))
				} else if profile != "" {
					status = logging.StatusSuccess
					profiles[i][j] = profile
					stats.Found++
				}
				logger.Info("processed agent",
					logging.Agent(a.Name),
					logging.Status(status),
					slog.Int("processed", stats.Processed),
					slog.Int("total", stats.Total),
					slog.Bool("found", profile != ""),
					slog.String("success_rate", fmt.Sprintf("%.1f%%", stats.SuccessRate())))
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	result := []agents.Office{}
	for i, o := range offices {
		kept := []agents.Agent{}
		for j, a := range o.Agents {
			if profiles[i][j] == "" {
				continue
			}
			a.LinkedIn = profiles[i][j]
			kept = append(kept, a)
		}
		if len(kept) > 0 {
			result = append(result, o.WithAgents(kept))
		}
	}

	logger.Info("LinkedIn lookup finished",
		slog.Int("found", stats.Found),
		slog.Int("processed", stats.Processed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("offices", len(result)))
	return result, stats, nil
}

func (f *Finder) lookup(ctx context.Context, zillowProfile string) (string, error) {
	data, err := f.extractor.Extract(ctx, firecrawl.ExtractRequest{
		URLs:   []string{zillowProfile},
		Schema: Schema,
	})
	if err != nil {
		return "", err
	}

	var out struct {
		LinkedInProfile string `json:"linkedin_profile"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return "", fmt.Errorf("failed to parse extracted profile: %w", err)
		}
	}
	return NormalizeProfileURL(out.LinkedInProfile), nil
}

// NormalizeProfileURL returns a canonical https LinkedIn profile URL, or ""
// when raw is not a personal profile link.
func NormalizeProfileURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return ""
	}

	path := strings.TrimRight(u.Path, "/")
	if !strings.HasPrefix(path, "/in/") || len(path) == len("/in/") {
		return ""
	}

	return (&url.URL{Scheme: "https", Host: host, Path: path}).String()
}
