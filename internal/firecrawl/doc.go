// Package firecrawl is a small client for the Firecrawl extract API.
//
// Extraction jobs are asynchronous: Extract submits the job and polls its
// status until the structured data is ready.
package firecrawl
