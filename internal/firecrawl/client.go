package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/ratelimit"
)

const (
	// DefaultBaseURL is the hosted Firecrawl API.
	DefaultBaseURL = "https://api.firecrawl.dev"

	// DefaultPollInterval is the delay between extract status checks.
	DefaultPollInterval = 2 * time.Second

	maxErrorBody = 4096
)

// ErrExtractFailed is returned when an extract job ends as failed or cancelled.
var ErrExtractFailed = errors.New("firecrawl extract failed")

// Extract job states.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// APIError is a non-2xx response from Firecrawl.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firecrawl API returned %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	Limiter      *ratelimit.Limiter
	PollInterval time.Duration
}

// Client calls the Firecrawl API.
type Client struct {
	apiKey       string
	baseURL      string
	http         *http.Client
	limiter      *ratelimit.Limiter
	pollInterval time.Duration
}

// NewClient creates a client. The API key is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	c := &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		http:         cfg.HTTPClient,
		limiter:      cfg.Limiter,
		pollInterval: cfg.PollInterval,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	return c, nil
}

// ExtractRequest describes what to extract from a set of pages.
type ExtractRequest struct {
	URLs   []string        `json:"urls"`
	Prompt string          `json:"prompt,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

type extractResponse struct {
	Success bool            `json:"success"`
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Extract runs an extract job and returns its data object.
func (c *Client) Extract(ctx context.Context, req ExtractRequest) (data json.RawMessage, err error) {
	if len(req.URLs) == 0 {
		return nil, fmt.Errorf("at least one url is required")
	}

	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServiceFirecrawl, "extract",
		attribute.StringSlice("firecrawl.urls", req.URLs))
	defer func() {
		instrumentation.SetSpanStatus(span, err)
		span.End()
	}()

	var started extractResponse
	if err := c.do(ctx, http.MethodPost, "/v1/extract", req, &started); err != nil {
		return nil, fmt.Errorf("failed to start extract: %w", err)
	}
	if !started.Success {
		return nil, fmt.Errorf("%w: %s", ErrExtractFailed, orDefault(started.Error, "request was not accepted"))
	}
	if hasData(started.Data) {
		return started.Data, nil
	}
	if started.ID == "" {
		return nil, fmt.Errorf("%w: response carried neither data nor job id", ErrExtractFailed)
	}

	return c.waitForExtract(ctx, started.ID)
}

func (c *Client) waitForExtract(ctx context.Context, id string) (json.RawMessage, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var status extractResponse
		if err := c.do(ctx, http.MethodGet, "/v1/extract/"+id, nil, &status); err != nil {
			return nil, fmt.Errorf("failed to get extract status for %s: %w", id, err)
		}

		switch {
		case status.Status == StatusFailed || status.Status == StatusCancelled:
			return nil, fmt.Errorf("%w: job %s %s: %s", ErrExtractFailed, id, status.Status, status.Error)
		case !status.Success:
			return nil, fmt.Errorf("%w: job %s: %s", ErrExtractFailed, id, orDefault(status.Error, "status request was not successful"))
		case status.Status == StatusCompleted:
			return status.Data, nil
		case status.Status != StatusProcessing:
			return nil, fmt.Errorf("%w: job %s has unknown status %q", ErrExtractFailed, id, status.Status)
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.RecordRateLimitError(ratelimit.RetryAfter(resp))
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func hasData(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
