// Package pipeline runs one transcription from an audio file to MIDI and
// MusicXML artifacts.
//
// The Orchestrator sequences decode, analysis, segmentation, encoding and
// rendering, degrading to fallbacks at each step. It never panics or returns
// an error: every outcome, including internal faults and timeouts, is
// reported through Result.
package pipeline
