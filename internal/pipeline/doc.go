// Package pipeline runs the four lead collection stages (scrape, linkedin,
// enrich, upload) against the JSON handoff files in a data directory and
// records each run in the history store.
//
// A stage can run on its own or as part of a Plan. Stage implementations come
// from a Factory so that credentials are only required for the stages that
// are actually executed.
package pipeline
