// Package logging provides structured logging utilities for agentleads.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Process logger setup (stderr text handler, optional rotated JSON file)
//   - Consistent attribute naming across the pipeline stages
//   - PII sanitization (agent emails are hashed, API keys are never printed)
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithStage(slog.Default(), "linkedin")
//	logger.Info("profile found",
//	    logging.Agent(agent.Name),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("contact revealed",
//	    logging.EmailHash(email), logging.Domain(email))
//
// # Security Considerations
//
//   - Revealed emails are hashed to prevent PII leakage while allowing correlation
//   - API keys and OAuth tokens are never logged directly
package logging
