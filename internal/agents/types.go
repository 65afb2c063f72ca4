package agents

import (
	"encoding/json"
	"fmt"
)

// Handoff file names, one per stage output.
const (
	AgentsFile   = "0_agents.json"
	LinkedInFile = "1_agents_with_linkedin.json"
	ContactsFile = "2_agents_with_email_and_phone.json"
)

// Agent is a single real-estate agent lead.
type Agent struct {
	// Name is the agent's display name
	Name string

	// ZillowProfile is the agent's Zillow profile URL
	ZillowProfile string

	// LinkedIn is the agent's LinkedIn profile URL (empty until stage 1)
	LinkedIn string

	// Extra holds unrecognised keys from the input file
	Extra map[string]json.RawMessage
}

// MarshalJSON writes the known fields followed by any preserved extras.
func (a Agent) MarshalJSON() ([]byte, error) {
	m := cloneExtra(a.Extra)
	if err := putString(m, "name", a.Name, false); err != nil {
		return nil, err
	}
	if err := putString(m, "zillow_profile", a.ZillowProfile, false); err != nil {
		return nil, err
	}
	if err := putString(m, "linkedin", a.LinkedIn, true); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the known fields and keeps the rest in Extra.
func (a *Agent) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var err error
	if a.Name, err = takeString(m, "name"); err != nil {
		return err
	}
	if a.ZillowProfile, err = takeString(m, "zillow_profile"); err != nil {
		return err
	}
	if a.LinkedIn, err = takeString(m, "linkedin"); err != nil {
		return err
	}
	a.Extra = nilIfEmpty(m)
	return nil
}

// Office groups agents, optionally with brokerage details.
type Office struct {
	// Name is the brokerage office name (optional)
	Name string

	// Address is the office street address (optional)
	Address string

	// Agents are the office's agents
	Agents []Agent

	// Extra holds unrecognised keys from the input file
	Extra map[string]json.RawMessage
}

// MarshalJSON writes the known fields followed by any preserved extras.
func (o Office) MarshalJSON() ([]byte, error) {
	m := cloneExtra(o.Extra)
	if err := putString(m, "office_name", o.Name, true); err != nil {
		return nil, err
	}
	if err := putString(m, "office_address", o.Address, true); err != nil {
		return nil, err
	}
	agents := o.Agents
	if agents == nil {
		agents = []Agent{}
	}
	raw, err := json.Marshal(agents)
	if err != nil {
		return nil, err
	}
	m["agents"] = raw
	return json.Marshal(m)
}

// UnmarshalJSON reads the known fields and keeps the rest in Extra.
func (o *Office) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var err error
	if o.Name, err = takeString(m, "office_name"); err != nil {
		return err
	}
	if o.Address, err = takeString(m, "office_address"); err != nil {
		return err
	}
	o.Agents = nil
	if raw, ok := m["agents"]; ok {
		delete(m, "agents")
		if err := json.Unmarshal(raw, &o.Agents); err != nil {
			return fmt.Errorf("agents: %w", err)
		}
	}
	o.Extra = nilIfEmpty(m)
	return nil
}

// WithAgents returns a copy of the office holding the given agents.
func (o Office) WithAgents(agents []Agent) Office {
	o.Agents = agents
	o.Extra = cloneExtra(o.Extra)
	return o
}

// ContactResult is the stage 2 output for one agent.
type ContactResult struct {
	AgentName     string          `json:"agent_name"`
	LinkedInURL   string          `json:"linkedin_url"`
	ZillowProfile string          `json:"zillow_profile,omitempty"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Status        string          `json:"status,omitempty"`
	Error         string          `json:"error,omitempty"`
	Response      json.RawMessage `json:"wiza_response,omitempty"`
}

// Contact statuses.
const (
	ContactFound    = "found"
	ContactNotFound = "not_found"
	ContactFailed   = "failed"
)

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	m := make(map[string]json.RawMessage, len(extra)+3)
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func putString(m map[string]json.RawMessage, key, value string, omitEmpty bool) error {
	if value == "" && omitEmpty {
		delete(m, key)
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m[key] = raw
	return nil
}

func takeString(m map[string]json.RawMessage, key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", nil
	}
	delete(m, key)
	if string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}

func nilIfEmpty(m map[string]json.RawMessage) map[string]json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	return m
}
