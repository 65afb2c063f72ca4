package wiza

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/logging"
)

// DefaultAgentDelay is the pause after one reveal finishes and before the
// next one starts.
const DefaultAgentDelay = time.Second

// Revealer is the subset of Client used by Enricher.
type Revealer interface {
	Credits(ctx context.Context) (*Credits, error)
	StartReveal(ctx context.Context, profileURL string, level agents.EnrichmentLevel) (*Reveal, error)
	WaitForReveal(ctx context.Context, id int64) (*Reveal, error)
}

// Enricher reveals contact details for every agent with a LinkedIn profile.
type Enricher struct {
	client Revealer
	logger *slog.Logger
	delay  time.Duration
}

// NewEnricher creates an enricher that pauses for delay after each reveal.
func NewEnricher(client Revealer, delay time.Duration, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{client: client, logger: logger, delay: delay}
}

// Enrich reveals contacts for the agents of offices at the given level.
// Credits are checked first; if that fails nothing is revealed. Agents
// without a LinkedIn profile are skipped. A failed reveal is recorded with
// status failed and processing continues.
func (e *Enricher) Enrich(ctx context.Context, offices []agents.Office, level agents.EnrichmentLevel) ([]agents.ContactResult, error) {
	results := []agents.ContactResult{}
	logger := logging.WithStage(e.logger, "enrich").With(slog.String("level", string(level)))

	if !level.Valid() || level == agents.EnrichNone {
		return results, fmt.Errorf("enrichment level %q does not reveal contacts", level)
	}

	credits, err := e.client.Credits(ctx)
	if err != nil {
		logger.Error("failed to verify credits", logging.Err(err))
		return results, fmt.Errorf("failed to verify credits: %w", err)
	}
	if n, known := credits.Remaining("api_credits"); known && n <= 0 {
		return results, ErrInsufficientCredits
	}
	logger.Info("credits verified", slog.String("credits", string(credits.Raw)))

	for _, o := range offices {
		for _, a := range o.Agents {
			if a.LinkedIn == "" {
				logger.Warn("no LinkedIn URL found for agent", logging.Agent(a.Name))
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if len(results) > 0 {
				if err := e.pause(ctx); err != nil {
					return nil, err
				}
			}

			result, err := e.revealAgent(ctx, logger, a, level)
			if err != nil {
				return nil, err
			}
			results = append(results, result)
		}
	}

	logger.Info("enrichment finished", slog.Int("results", len(results)))
	return results, nil
}

func (e *Enricher) pause(ctx context.Context) error {
	if e.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(e.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// revealAgent returns an error only when ctx is done.
func (e *Enricher) revealAgent(ctx context.Context, logger *slog.Logger, a agents.Agent, level agents.EnrichmentLevel) (agents.ContactResult, error) {
	result := agents.ContactResult{
		AgentName:     a.Name,
		LinkedInURL:   a.LinkedIn,
		ZillowProfile: a.ZillowProfile,
	}
	logger = logger.With(logging.Agent(a.Name))
	logger.Info("revealing contact details")

	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServiceWiza, "reveal",
		attribute.String(instrumentation.SpanAttrEnrichment, string(level)))
	defer span.End()

	started, err := e.client.StartReveal(ctx, a.LinkedIn, level)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		logger.Error("failed to start reveal", logging.Err(err))
		instrumentation.SetSpanStatus(span, err)
		result.Status = agents.ContactFailed
		result.Error = err.Error()
		if started != nil {
			result.Response = started.Raw
		}
		return result, nil
	}

	reveal, err := e.client.WaitForReveal(ctx, started.ID)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		logger.Error("reveal did not complete", slog.Int64("reveal_id", started.ID), logging.Err(err))
		instrumentation.SetSpanStatus(span, err)
		result.Status = agents.ContactFailed
		result.Error = err.Error()
		if reveal != nil {
			result.Response = reveal.Raw
		} else if !errors.Is(err, ErrRevealTimeout) {
			result.Response = started.Raw
		}
		return result, nil
	}

	instrumentation.SetSpanStatus(span, nil)
	result.Email = reveal.Email
	result.Phone = reveal.Phone
	result.Response = reveal.Raw
	if result.Email != "" || result.Phone != "" {
		result.Status = agents.ContactFound
		logger.Info("contact details found",
			logging.Status(logging.StatusSuccess),
			logging.EmailHash(result.Email),
			logging.Domain(result.Email),
			slog.Bool("has_phone", result.Phone != ""))
	} else {
		result.Status = agents.ContactNotFound
		logger.Info("no contact details found", logging.Status(logging.StatusNotFound))
	}
	return result, nil
}
