// Package logging assembles structured slog loggers and formatting helpers used
// across medannotate.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request handlers can tag log
// lines with work item ids, tracks, annotators, and correlation ids. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
