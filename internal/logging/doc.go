// Package logging assembles structured slog loggers and formatting helpers used
// across the agbprep pipeline.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically tags
// log lines with the run identifier, stage, plot, and band being processed.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so per-unit warnings
// (one plot, one band) carry the same fields everywhere.
package logging
