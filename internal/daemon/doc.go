// Package daemon coordinates the long-running SoundSketch process.
//
// It wires configuration, the job store, the workflow manager and the HTTP
// API into a single lifecycle, with flock-based locking to prevent multiple
// instances sharing one state directory. Uploads accepted by the API are
// validated, stored in the upload directory and queued; the workflow is
// notified so an idle worker picks the job up immediately.
//
// Keep orchestration logic here: transcription lives in the pipeline and
// worker scheduling in workflow, while the daemon focuses on startup,
// shutdown and the HTTP surface.
package daemon
