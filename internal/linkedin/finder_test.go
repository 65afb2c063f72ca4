package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/firecrawl"
)

type fakeExtractor struct {
	mu       sync.Mutex
	profiles map[string]string
	errs     map[string]error
	calls    int
}

func (f *fakeExtractor) Extract(_ context.Context, req firecrawl.ExtractRequest) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	u := req.URLs[0]
	if err := f.errs[u]; err != nil {
		return nil, err
	}
	out, _ := json.Marshal(map[string]string{"linkedin_profile": f.profiles[u]})
	return out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFind(t *testing.T) {
	ext := &fakeExtractor{
		profiles: map[string]string{
			"z/a": "https://www.linkedin.com/in/a/",
			"z/c": "linkedin.com/in/c?trk=x",
			"z/d": "https://www.linkedin.com/company/d",
		},
		errs: map[string]error{"z/e": errors.New("timeout")},
	}
	offices := []agents.Office{
		{Name: "One", Agents: []agents.Agent{
			{Name: "A", ZillowProfile: "z/a"},
			{Name: "B", ZillowProfile: "z/b"},
			{Name: "NoProfile"},
		}},
		{Name: "Two", Agents: []agents.Agent{
			{Name: "D", ZillowProfile: "z/d"},
			{Name: "E", ZillowProfile: "z/e"},
		}},
		{Name: "Three", Agents: []agents.Agent{
			{Name: "C", ZillowProfile: "z/c"},
		}},
	}

	for _, concurrency := range []int{1, 4} {
		got, stats, err := NewFinder(ext, concurrency, quietLogger()).Find(context.Background(), offices)
		require.NoError(t, err)

		assert.Equal(t, Stats{Total: 6, Processed: 6, Found: 2, Skipped: 1}, stats)
		assert.InDelta(t, 100.0/3, stats.SuccessRate(), 0.001)
		require.Len(t, got, 2)
		assert.Equal(t, "One", got[0].Name)
		require.Len(t, got[0].Agents, 1)
		assert.Equal(t, "https://www.linkedin.com/in/a", got[0].Agents[0].LinkedIn)
		assert.Equal(t, "Three", got[1].Name)
		assert.Equal(t, "https://linkedin.com/in/c", got[1].Agents[0].LinkedIn)
	}

	// Input is left untouched.
	assert.Empty(t, offices[0].Agents[0].LinkedIn)
	assert.Len(t, offices[0].Agents, 3)
}

func TestFindNoAgents(t *testing.T) {
	f := NewFinder(&fakeExtractor{}, 1, quietLogger())

	_, _, err := f.Find(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoAgents)

	_, _, err = f.Find(context.Background(), []agents.Office{{}})
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestFindNoneFound(t *testing.T) {
	got, stats, err := NewFinder(&fakeExtractor{}, 2, quietLogger()).Find(context.Background(), []agents.Office{
		{Agents: []agents.Agent{{Name: "A", ZillowProfile: "z/a"}}},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Zero(t, stats.SuccessRate())
	assert.Equal(t, 1, stats.Processed)
}

func TestFindCountsAgentsWithoutProfile(t *testing.T) {
	ext := &fakeExtractor{profiles: map[string]string{"z/a": "https://www.linkedin.com/in/a"}}
	got, stats, err := NewFinder(ext, 1, quietLogger()).Find(context.Background(), []agents.Office{
		{Agents: []agents.Agent{{Name: "A", ZillowProfile: "z/a"}, {Name: "B"}, {Name: "C"}, {Name: "D"}}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Stats{Total: 4, Processed: 4, Found: 1, Skipped: 3}, stats)
	assert.InDelta(t, 25.0, stats.SuccessRate(), 0.001)
}

func TestFindCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewFinder(&fakeExtractor{}, 1, quietLogger()).Find(ctx, []agents.Office{
		{Agents: []agents.Agent{{Name: "A", ZillowProfile: "z/a"}}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatsSuccessRate(t *testing.T) {
	assert.InDelta(t, 50.0, Stats{Processed: 4, Found: 2}.SuccessRate(), 0.001)
	assert.Zero(t, Stats{}.SuccessRate())
}

func TestNormalizeProfileURL(t *testing.T) {
	tests := map[string]string{
		"":                                         "",
		"   ":                                      "",
		"https://www.linkedin.com/in/jane-doe":     "https://www.linkedin.com/in/jane-doe",
		"http://www.linkedin.com/in/jane-doe/":     "https://www.linkedin.com/in/jane-doe",
		"www.linkedin.com/in/jane?utm_source=x#a":  "https://www.linkedin.com/in/jane",
		"https://WWW.LinkedIn.com/in/Jane":         "https://www.linkedin.com/in/Jane",
		"https://uk.linkedin.com/in/jane":          "https://uk.linkedin.com/in/jane",
		"https://www.linkedin.com/in/":             "",
		"https://www.linkedin.com/company/acme":    "",
		"https://notlinkedin.com/in/jane":          "",
		"https://example.com/in/jane":              "",
		"N/A":                                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeProfileURL(in), "input %q", in)
	}
}
