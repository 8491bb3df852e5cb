// Package logging assembles structured slog loggers and formatting helpers used
// across the postgate roles.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so adapter code can tag log lines
// with queue item IDs, roles, and correlation IDs. NewNop provides a discarding
// logger for tests and wiring code that cannot fail.
package logging
