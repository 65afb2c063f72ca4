package wiza

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/ratelimit"
)

const (
	// DefaultBaseURL is the hosted Wiza API.
	DefaultBaseURL = "https://wiza.co"

	// DefaultMaxRetries is how many times a reveal status is checked.
	DefaultMaxRetries = 10

	// DefaultRetryDelay is the delay between reveal status checks.
	DefaultRetryDelay = 5 * time.Second

	maxErrorBody = 4096
)

var (
	// ErrRevealFailed is returned when Wiza reports a reveal as failed.
	ErrRevealFailed = errors.New("reveal failed")

	// ErrRevealTimeout is returned when a reveal is still running after
	// every status check.
	ErrRevealTimeout = errors.New("reveal did not complete in time")

	// ErrInsufficientCredits is returned when the account has no API credits left.
	ErrInsufficientCredits = errors.New("insufficient Wiza credits")
)

// APIError is a non-2xx response from Wiza.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wiza API returned %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	MaxRetries int
	RetryDelay time.Duration
}

// Client calls the Wiza API.
type Client struct {
	apiKey     string
	baseURL    string
	http       *http.Client
	limiter    *ratelimit.Limiter
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a client. The API key is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       cfg.HTTPClient,
		limiter:    cfg.Limiter,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryDelay < 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(0)
	}
	return c, nil
}

// Credits is the account's credit balance keyed by credit type.
type Credits struct {
	Values map[string]json.RawMessage
	Raw    json.RawMessage
}

// Remaining returns the balance for a credit type such as "api_credits".
// known is false when the type is absent or not a number ("unlimited").
func (c Credits) Remaining(kind string) (n float64, known bool) {
	raw, ok := c.Values[kind]
	if !ok {
		return 0, false
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false
		}
		num = json.Number(s)
	}
	f, err := num.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// Credits returns the account's credit balance.
func (c *Client) Credits(ctx context.Context) (*Credits, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/meta/credits", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get credits: %w", err)
	}

	var resp struct {
		Credits map[string]json.RawMessage `json:"credits"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode credits: %w", err)
	}
	return &Credits{Values: resp.Credits, Raw: body}, nil
}

// Reveal is the state of an individual reveal.
type Reveal struct {
	ID         int64
	Status     string
	IsComplete bool
	Email      string
	Phone      string

	// Raw is the full response body.
	Raw json.RawMessage
}

// Failed reports whether Wiza gave up on the reveal.
func (r *Reveal) Failed() bool {
	return r.Status == "failed"
}

type revealData struct {
	ID          json.RawMessage `json:"id"`
	Status      string          `json:"status"`
	IsComplete  bool            `json:"is_complete"`
	Email       string          `json:"email"`
	MobilePhone string          `json:"mobile_phone"`
	PhoneNumber string          `json:"phone_number"`
	Emails      []struct {
		Email string `json:"email"`
	} `json:"emails"`
	Phones []struct {
		Number       string `json:"number"`
		PrettyNumber string `json:"pretty_number"`
	} `json:"phones"`
}

func parseReveal(body []byte) (*Reveal, error) {
	var resp struct {
		Data revealData `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode reveal: %w", err)
	}
	d := resp.Data

	r := &Reveal{
		Status:     d.Status,
		IsComplete: d.IsComplete,
		Email:      d.Email,
		Phone:      firstNonEmpty(d.MobilePhone, d.PhoneNumber),
		Raw:        json.RawMessage(body),
	}

	id := strings.Trim(string(d.ID), `"`)
	if id != "" && id != "null" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reveal id %s", d.ID)
		}
		r.ID = n
	}

	if r.Email == "" {
		for _, e := range d.Emails {
			if e.Email != "" {
				r.Email = e.Email
				break
			}
		}
	}
	if r.Phone == "" {
		for _, p := range d.Phones {
			if v := firstNonEmpty(p.PrettyNumber, p.Number); v != "" {
				r.Phone = v
				break
			}
		}
	}
	return r, nil
}

// StartReveal queues a reveal for a LinkedIn profile.
func (c *Client) StartReveal(ctx context.Context, profileURL string, level agents.EnrichmentLevel) (*Reveal, error) {
	if profileURL == "" {
		return nil, fmt.Errorf("profile url is required")
	}
	if !level.Valid() {
		return nil, fmt.Errorf("invalid enrichment level %q", level)
	}

	payload := map[string]any{
		"individual_reveal": map[string]string{"profile_url": profileURL},
		"enrichment_level":  string(level),
	}
	body, err := c.do(ctx, http.MethodPost, "/api/individual_reveals", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to start reveal: %w", err)
	}

	r, err := parseReveal(body)
	if err != nil {
		return nil, err
	}
	if r.ID == 0 {
		return r, fmt.Errorf("no reveal id in response")
	}
	return r, nil
}

// GetReveal fetches the current state of a reveal.
func (c *Client) GetReveal(ctx context.Context, id int64) (*Reveal, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/individual_reveals/%d", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get reveal %d: %w", id, err)
	}
	return parseReveal(body)
}

// WaitForReveal polls a reveal until it completes. A failed reveal is
// returned together with ErrRevealFailed.
func (c *Client) WaitForReveal(ctx context.Context, id int64) (*Reveal, error) {
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		r, err := c.GetReveal(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.IsComplete {
			return r, nil
		}
		if r.Failed() {
			return r, fmt.Errorf("%w: reveal %d", ErrRevealFailed, id)
		}
		if attempt == c.maxRetries {
			break
		}

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w: reveal %d after %d checks", ErrRevealTimeout, id, c.maxRetries)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.RecordRateLimitError(ratelimit.RetryAfter(resp))
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
