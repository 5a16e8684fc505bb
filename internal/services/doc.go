// Package services defines shared utilities consumed by the transcription
// pipeline, the workflow manager, and the HTTP API.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, worker names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent job statuses (failed vs completed_with_errors).
//
// Use these helpers when wiring new pipeline stages so error classification
// and observability stay uniform.
package services
