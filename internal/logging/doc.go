// Package logging assembles the structured slog loggers used across rollq.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes shared attribute keys so queue operations tag log
// lines consistently. A no-op logger is provided for tests and wiring code
// that cannot fail.
package logging
