// Package queue persists transcription jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, atomic job
// claims, heartbeat tracking, stale-job recovery, retention queries, and stats.
// A job moves queued -> processing -> completed | completed_with_errors | failed,
// and only the worker that claimed a job writes its record while it runs.
//
// The database is transient storage for recent jobs rather than an archive.
// Schema changes bump schemaVersion in schema.go; users delete the database to
// adopt the new schema.
package queue
