// Package preflight provides readiness checks for the filesystem paths and
// external binaries SoundSketch depends on.
//
// The daemon runs RunAll at startup and refuses to serve when a directory is
// unusable. The CLI deps command reports CheckSystemDeps alongside the same
// directory checks.
package preflight
