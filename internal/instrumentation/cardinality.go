package instrumentation

import (
	"strings"

	"github.com/google/uuid"
)

// Cardinality management helpers for metrics.
// These reduce high-cardinality label values to keep the number of series bounded.

// ZIPRegion returns the three digit sectional center prefix of a US ZIP code.
//
// Example:
//
//	ZIPRegion("90210")  // "902xx"
//	ZIPRegion("1234")   // "unknown"
//	ZIPRegion("")       // "unknown"
func ZIPRegion(zip string) string {
	if len(zip) != 5 {
		return "unknown"
	}
	for _, r := range zip {
		if r < '0' || r > '9' {
			return "unknown"
		}
	}
	return zip[:3] + "xx"
}

// APIOperation turns an HTTP method and URL path into a bounded operation label.
// Numeric, UUID and long opaque path segments become "{id}" and A1 ranges become "{range}".
//
// Example:
//
//	APIOperation("GET", "/v1/extract/0b9c...")                 // "GET /v1/extract/{id}"
//	APIOperation("GET", "/api/individual_reveals/4211")        // "GET /api/individual_reveals/{id}"
//	APIOperation("POST", "/v4/spreadsheets/1AbC...:batchUpdate") // "POST /v4/spreadsheets/{id}:batchUpdate"
func APIOperation(method, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = normalizeSegment(seg)
	}
	return strings.ToUpper(method) + " /" + strings.Join(segments, "/")
}

func normalizeSegment(seg string) string {
	if strings.Contains(seg, "!") {
		return "{range}"
	}
	head, verb, hasVerb := strings.Cut(seg, ":")
	if !isIdentifier(head) {
		return seg
	}
	if hasVerb {
		return "{id}:" + verb
	}
	return "{id}"
}

func isIdentifier(seg string) bool {
	if seg == "" {
		return false
	}
	if _, err := uuid.Parse(seg); err == nil {
		return true
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			// Drive file ids are long opaque tokens
			return len(seg) >= 25 && !strings.Contains(seg, ".")
		}
	}
	return true
}

// Pipeline stage names used as metric and span labels.
const (
	StageScrape   = "scrape"
	StageLinkedIn = "linkedin"
	StageEnrich   = "enrich"
	StageUpload   = "upload"
)

// Status label values.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusSkipped     = "skipped"
	StatusRateLimited = "rate_limited"
)

// Per-agent outcomes of the linkedin and enrich stages.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// External services, used as the service label and span prefix.
const (
	ServiceFirecrawl = "firecrawl"
	ServiceWiza      = "wiza"
	ServiceDrive     = "drive"
	ServiceSheets    = "sheets"
)
