// Package logging assembles structured slog loggers and formatting helpers used
// across embednotify.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so notification code can tag log
// lines with correlation and datasource identifiers. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
