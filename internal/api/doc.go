// Package api defines the wire-format types served by the HTTP API and
// printed by the CLI's JSON output. It translates internal job records into
// transport-friendly DTOs without coupling clients to internal types.
//
// # Key Types
//
// JobStatus: a job with its status, progress stage, artifacts grouped per
// format and instrument, and the errors recorded during the run.
//
// ConversionResponse: the reply to an upload.
//
// HealthResponse: daemon liveness plus workflow diagnostics.
//
// # Services
//
// JobService wraps the job store for listing, describing, deleting and
// resolving download paths, so the daemon and the CLI apply the same rules.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to stay compatible with existing web
// clients. Timestamps use RFC3339 with milliseconds in UTC. Artifact lists are
// always present (possibly empty) so clients can iterate without nil checks.
package api
