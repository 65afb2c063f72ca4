package wiza

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agentleads/internal/agents"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		APIKey:     "wiza-test",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		MaxRetries: 3,
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.EqualError(t, err, "api key is required")
}

func TestCredits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/meta/credits", r.URL.Path)
		assert.Equal(t, "Bearer wiza-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"credits":{"email_credits":"unlimited","phone_credits":"12","api_credits":40}}`))
	})

	credits, err := c.Credits(context.Background())
	require.NoError(t, err)

	n, known := credits.Remaining("api_credits")
	assert.True(t, known)
	assert.Equal(t, 40.0, n)

	n, known = credits.Remaining("phone_credits")
	assert.True(t, known)
	assert.Equal(t, 12.0, n)

	_, known = credits.Remaining("email_credits")
	assert.False(t, known)
	_, known = credits.Remaining("export_credits")
	assert.False(t, known)
}

func TestCreditsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	})

	_, err := c.Credits(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "bad key", apiErr.Body)
}

func TestStartReveal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/individual_reveals", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "phone", body["enrichment_level"])
		assert.Equal(t, map[string]any{"profile_url": "https://www.linkedin.com/in/a"}, body["individual_reveal"])

		_, _ = w.Write([]byte(`{"status":{"code":200},"data":{"id":987,"status":"queued","is_complete":false}}`))
	})

	r, err := c.StartReveal(context.Background(), "https://www.linkedin.com/in/a", agents.EnrichPhone)
	require.NoError(t, err)
	assert.Equal(t, int64(987), r.ID)
	assert.False(t, r.IsComplete)
}

func TestStartRevealValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.StartReveal(context.Background(), "", agents.EnrichFull)
	assert.Error(t, err)
	_, err = c.StartReveal(context.Background(), "u", agents.EnrichmentLevel("max"))
	assert.Error(t, err)
}

func TestStartRevealMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	r, err := c.StartReveal(context.Background(), "u", agents.EnrichFull)
	require.Error(t, err)
	require.NotNil(t, r)
	assert.JSONEq(t, `{"data":{}}`, string(r.Raw))
}

func TestWaitForRevealCompletes(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/individual_reveals/5", r.URL.Path)
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"data":{"id":5,"status":"processing","is_complete":false}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":5,"status":"finished","is_complete":true,
			"emails":[{"email":"jane@example.com"}],
			"phones":[{"number":"+15550100","pretty_number":"+1 555-0100"}]}}`))
	})

	r, err := c.WaitForReveal(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", r.Email)
	assert.Equal(t, "+1 555-0100", r.Phone)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWaitForRevealFailed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":6,"status":"failed","is_complete":false}}`))
	})

	r, err := c.WaitForReveal(context.Background(), 6)
	assert.ErrorIs(t, err, ErrRevealFailed)
	require.NotNil(t, r)
	assert.True(t, r.Failed())
}

func TestWaitForRevealTimeout(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":{"id":7,"status":"processing"}}`))
	})

	_, err := c.WaitForReveal(context.Background(), 7)
	assert.ErrorIs(t, err, ErrRevealTimeout)
	assert.Equal(t, int32(3), calls.Load())
}

func TestParseRevealPrefersDirectFields(t *testing.T) {
	r, err := parseReveal([]byte(`{"data":{"id":"12","is_complete":true,"email":"a@example.com","mobile_phone":"+1 555","phone_number":"+1 666","emails":[{"email":"b@example.com"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(12), r.ID)
	assert.Equal(t, "a@example.com", r.Email)
	assert.Equal(t, "+1 555", r.Phone)

	_, err = parseReveal([]byte(`{"data":{"id":"abc"}}`))
	assert.Error(t, err)
}
