package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Attribute keys shared by every package that logs.
const (
	KeyOperation   = "operation"
	KeyStage       = "stage"
	KeyService     = "service"
	KeyRunID       = "run_id"
	KeyZIP         = "zip"
	KeyAgent       = "agent"
	KeyURL         = "url"
	KeyEmailHash   = "email_hash"
	KeyEmailDomain = "email_domain"
	KeyDuration    = "duration"
	KeyStatus      = "status"
	KeyError       = "error"
	KeyTool        = "tool"
)

// Outcome values of the status attribute. They mirror the instrumentation
// status labels, which this package cannot import.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusNotFound = "not_found"
	StatusSkipped  = "skipped"
)

func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(Operation(operation))
}

func WithStage(logger *slog.Logger, stage string) *slog.Logger {
	return logger.With(Stage(stage))
}

func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(Tool(tool))
}

// WithService tags a logger with the external API it talks to
// (firecrawl, wiza, google).
func WithService(logger *slog.Logger, service string) *slog.Logger {
	return logger.With(Service(service))
}

// WithRun tags a logger with the run ID recorded in the history database.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(slog.String(KeyRunID, runID))
}

func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }
func Stage(stage string) slog.Attr { return slog.String(KeyStage, stage) }
func Service(svc string) slog.Attr { return slog.String(KeyService, svc) }
func ZIP(zip string) slog.Attr { return slog.String(KeyZIP, zip) }
func Agent(name string) slog.Attr { return slog.String(KeyAgent, name) }
func URL(u string) slog.Attr { return slog.String(KeyURL, u) }
func Tool(tool string) slog.Attr { return slog.String(KeyTool, tool) }
func Status(s string) slog.Attr { return slog.String(KeyStatus, s) }

// Err returns the error attribute. A nil error yields an empty group,
// which handlers drop, so Err(err) is safe on success paths.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// HashEmail returns a stable, case-insensitive pseudonym for a revealed
// email so log lines about the same contact can be correlated.
func HashEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "email:" + hex.EncodeToString(sum[:8])
}

func EmailHash(email string) slog.Attr {
	return slog.String(KeyEmailHash, HashEmail(email))
}

// EmailDomain returns the domain of an email, or "" when it has none.
func EmailDomain(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return ""
	}
	return strings.ToLower(domain)
}

// Domain is the low-cardinality companion of EmailHash.
func Domain(email string) slog.Attr {
	return slog.String(KeyEmailDomain, EmailDomain(email))
}

// SanitizeToken describes a secret by its length only.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
