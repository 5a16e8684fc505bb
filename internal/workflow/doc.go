// Package workflow drains the job queue with a pool of transcription workers.
//
// The Manager starts N workers that atomically claim queued jobs, run each
// one through the pipeline via stageexec, and keep the job's heartbeat fresh
// while it runs. Jobs whose heartbeat goes stale (for example after a crash)
// are returned to the queue, and jobs left in processing by a previous daemon
// are reset on start.
//
// Submissions call Notify, which wakes idle workers after a short debounce
// instead of waiting for the next poll tick. A periodic retention sweep
// deletes finished jobs older than workflow.retention_hours together with
// their uploads, artifacts and per-job log files.
//
// Status aggregates queue counts, the last processed job and the pipeline's
// health check for the daemon's /health endpoint and the CLI.
package workflow
