// Package logging assembles structured slog loggers and formatting helpers used
// across SoundSketch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code automatically
// tags log lines with job IDs, stages, and correlation IDs. TeeLogger mirrors
// records into per-job log files, and NewNop serves tests and wiring code that
// must not fail.
package logging
