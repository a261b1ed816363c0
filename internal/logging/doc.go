// Package logging provides structured logging utilities for the newsletterpost service.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Run ID propagation through context (every pipeline log line carries run_id)
//   - PII sanitization (email anonymization)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Build the process logger once and attach standard attributes per call:
//
//	logger := logging.New(os.Stderr, debug, jsonFormat)
//	ctx = logging.WithRunID(ctx, runID)
//	logger.InfoContext(ctx, "generated post",
//	    logging.Stage("generate"),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("gmail notification",
//	    logging.UserHash(notification.EmailAddress))
//
// # Security Considerations
//
//   - Email addresses from Gmail notifications are hashed before logging
//   - Tokens and API keys are never logged directly
package logging
