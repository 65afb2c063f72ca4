package agents

import (
	"fmt"
	"sort"
)

// AgentsPerPage is how many agents a Zillow directory page lists.
const AgentsPerPage = 15

// AgentCountOptions are the menu choices for how many agents to scrape.
var AgentCountOptions = map[int]int{
	1: 10,
	2: 50,
	3: 100,
	4: 200,
	5: 350,
}

// AgentCountChoices returns the menu keys in order.
func AgentCountChoices() []int {
	keys := make([]int, 0, len(AgentCountOptions))
	for k := range AgentCountOptions {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// PagesFor returns how many directory pages cover target agents.
func PagesFor(target int) int {
	if target <= 0 {
		return 0
	}
	return (target + AgentsPerPage - 1) / AgentsPerPage
}

// ValidZIP reports whether s is a five digit US ZIP code.
func ValidZIP(s string) bool {
	if len(s) != 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// EnrichmentLevel selects how much contact data is revealed per agent.
type EnrichmentLevel string

// Enrichment levels, in menu order.
const (
	EnrichNone    EnrichmentLevel = "none"
	EnrichPartial EnrichmentLevel = "partial"
	EnrichPhone   EnrichmentLevel = "phone"
	EnrichFull    EnrichmentLevel = "full"
)

var enrichmentMenu = []struct {
	level       EnrichmentLevel
	description string
}{
	{EnrichNone, "No additional data"},
	{EnrichPartial, "Find email only"},
	{EnrichPhone, "Find phone numbers only"},
	{EnrichFull, "Find both email and phone numbers"},
}

// EnrichmentChoices returns the number of enrichment menu entries.
func EnrichmentChoices() int {
	return len(enrichmentMenu)
}

// EnrichmentByChoice maps a 1-based menu choice to its level.
func EnrichmentByChoice(choice int) (EnrichmentLevel, error) {
	if choice < 1 || choice > len(enrichmentMenu) {
		return "", fmt.Errorf("enrichment choice must be between 1 and %d, got %d", len(enrichmentMenu), choice)
	}
	return enrichmentMenu[choice-1].level, nil
}

// Description returns the menu text for the level.
func (l EnrichmentLevel) Description() string {
	for _, e := range enrichmentMenu {
		if e.level == l {
			return e.description
		}
	}
	return ""
}

// Valid reports whether l is a known level.
func (l EnrichmentLevel) Valid() bool {
	return l.Description() != ""
}

// ParseEnrichmentLevel accepts a level name or its 1-based menu number.
func ParseEnrichmentLevel(s string) (EnrichmentLevel, error) {
	if l := EnrichmentLevel(s); l.Valid() {
		return l, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && fmt.Sprint(n) == s {
		return EnrichmentByChoice(n)
	}
	return "", fmt.Errorf("unknown enrichment level %q (use none, partial, phone or full)", s)
}
