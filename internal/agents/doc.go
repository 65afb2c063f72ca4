// Package agents defines the lead records passed between pipeline stages and
// the JSON handoff files they are stored in.
//
// A handoff file is a JSON array of offices, each carrying a list of agents:
//
//	[{"agents": [{"name": "Jane Roe", "zillow_profile": "https://www.zillow.com/profile/janeroe"}]}]
//
// Keys this package does not know about are preserved when a file is read and
// written back, so hand-edited files survive a stage.
package agents
