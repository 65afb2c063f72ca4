package zillow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agentleads/internal/firecrawl"
)

type fakeExtractor struct {
	pages map[string]string
	errs  map[string]error
	calls []firecrawl.ExtractRequest
}

func (f *fakeExtractor) Extract(_ context.Context, req firecrawl.ExtractRequest) (json.RawMessage, error) {
	f.calls = append(f.calls, req)
	u := req.URLs[0]
	if err := f.errs[u]; err != nil {
		return nil, err
	}
	return json.RawMessage(f.pages[u]), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDirectoryURL(t *testing.T) {
	assert.Equal(t,
		"https://www.zillow.com/professionals/real-estate-agent-reviews/94103/?page=2",
		DirectoryURL("94103", 2))
}

func TestGenerateURLs(t *testing.T) {
	urls := GenerateURLs("10001", 3)
	require.Len(t, urls, 3)
	assert.Equal(t, DirectoryURL("10001", 1), urls[0])
	assert.Equal(t, DirectoryURL("10001", 3), urls[2])

	assert.Empty(t, GenerateURLs("10001", 0))
	assert.Empty(t, GenerateURLs("10001", -1))
}

func TestScrapeCombinesPages(t *testing.T) {
	ext := &fakeExtractor{
		pages: map[string]string{
			DirectoryURL("94103", 1): `{"agents":[{"name":"A","zillow_profile":"https://www.zillow.com/profile/a"},{"name":"B","zillow_profile":"https://www.zillow.com/profile/b"}]}`,
			DirectoryURL("94103", 2): `{"agents":[{"name":"B","zillow_profile":"https://www.zillow.com/profile/b"},{"name":"C","zillow_profile":"https://www.zillow.com/profile/c"}]}`,
		},
	}
	s := NewScraper(ext, quietLogger())

	offices, err := s.Scrape(context.Background(), "94103", 2)
	require.NoError(t, err)
	require.Len(t, offices, 1)

	names := []string{}
	for _, a := range offices[0].Agents {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)

	require.Len(t, ext.calls, 2)
	assert.Equal(t, Prompt, ext.calls[0].Prompt)
	assert.JSONEq(t, string(Schema), string(ext.calls[0].Schema))
}

func TestScrapeSkipsFailedPages(t *testing.T) {
	ext := &fakeExtractor{
		pages: map[string]string{
			DirectoryURL("94103", 2): `{"agents":[{"name":"C","zillow_profile":"https://www.zillow.com/profile/c"}]}`,
			DirectoryURL("94103", 3): `not json`,
		},
		errs: map[string]error{
			DirectoryURL("94103", 1): errors.New("upstream down"),
		},
	}
	s := NewScraper(ext, quietLogger())

	offices, err := s.Scrape(context.Background(), "94103", 3)
	require.NoError(t, err)
	require.Len(t, offices, 1)
	require.Len(t, offices[0].Agents, 1)
	assert.Equal(t, "C", offices[0].Agents[0].Name)
}

func TestScrapeEveryPageFails(t *testing.T) {
	upstream := &firecrawl.APIError{StatusCode: 401, Body: "unauthorized"}
	ext := &fakeExtractor{errs: map[string]error{
		DirectoryURL("94103", 1): upstream,
		DirectoryURL("94103", 2): upstream,
		DirectoryURL("94103", 3): upstream,
	}}

	offices, err := NewScraper(ext, quietLogger()).Scrape(context.Background(), "94103", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAgents)

	var apiErr *firecrawl.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Nil(t, offices)
	assert.Len(t, ext.calls, 3)
}

func TestScrapeEmptyPages(t *testing.T) {
	ext := &fakeExtractor{pages: map[string]string{
		DirectoryURL("94103", 1): `{"agents":[]}`,
	}}
	_, err := NewScraper(ext, quietLogger()).Scrape(context.Background(), "94103", 1)
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestScrapeLimit(t *testing.T) {
	ext := &fakeExtractor{
		pages: map[string]string{
			DirectoryURL("94103", 1): `{"agents":[{"name":"A","zillow_profile":"a"},{"name":"B","zillow_profile":"b"}]}`,
			DirectoryURL("94103", 2): `{"agents":[{"name":"C","zillow_profile":"c"}]}`,
		},
	}
	s := NewScraper(ext, quietLogger())
	s.Limit = 2

	offices, err := s.Scrape(context.Background(), "94103", 2)
	require.NoError(t, err)
	assert.Len(t, offices[0].Agents, 2)
	assert.Len(t, ext.calls, 1)
}

func TestScrapeInvalidZIP(t *testing.T) {
	_, err := NewScraper(&fakeExtractor{}, quietLogger()).Scrape(context.Background(), "abc", 1)
	assert.Error(t, err)
}

func TestScrapeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScraper(&fakeExtractor{}, quietLogger()).Scrape(ctx, "94103", 2)
	assert.ErrorIs(t, err, context.Canceled)
}
