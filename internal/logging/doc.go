// Package logging assembles structured slog loggers and formatting helpers used
// across newsflow.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code can tag log lines
// with item IDs, stages, and tick correlation IDs. Per-stage level overrides
// and log retention live here too, along with a no-op logger for tests.
package logging
