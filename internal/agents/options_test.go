package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagesFor(t *testing.T) {
	tests := []struct {
		target int
		want   int
	}{
		{0, 0},
		{-3, 0},
		{1, 1},
		{10, 1},
		{15, 1},
		{16, 2},
		{50, 4},
		{100, 7},
		{200, 14},
		{350, 24},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PagesFor(tt.target), "target %d", tt.target)
	}
}

func TestAgentCountChoices(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5}, AgentCountChoices())
	assert.Equal(t, 350, AgentCountOptions[5])
}

func TestValidZIP(t *testing.T) {
	assert.True(t, ValidZIP("94103"))
	assert.True(t, ValidZIP("00501"))
	for _, s := range []string{"", "9410", "941033", "9410a", " 9410", "９４１０３"} {
		assert.False(t, ValidZIP(s), "%q", s)
	}
}

func TestEnrichmentByChoice(t *testing.T) {
	want := []EnrichmentLevel{EnrichNone, EnrichPartial, EnrichPhone, EnrichFull}
	require.Equal(t, len(want), EnrichmentChoices())
	for i, level := range want {
		got, err := EnrichmentByChoice(i + 1)
		require.NoError(t, err)
		assert.Equal(t, level, got)
		assert.NotEmpty(t, got.Description())
	}

	_, err := EnrichmentByChoice(0)
	assert.Error(t, err)
	_, err = EnrichmentByChoice(5)
	assert.Error(t, err)
}

func TestParseEnrichmentLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    EnrichmentLevel
		wantErr bool
	}{
		{"none", EnrichNone, false},
		{"full", EnrichFull, false},
		{"2", EnrichPartial, false},
		{"3", EnrichPhone, false},
		{"9", "", true},
		{"3x", "", true},
		{"FULL", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEnrichmentLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
