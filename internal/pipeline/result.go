package pipeline

import (
	"time"

	"soundsketch/internal/queue"
	"soundsketch/internal/segment"
)

// Request describes one run.
type Request struct {
	InputPath string
	JobID     string
	// Stem selects the MIDI program and artifact names. Empty uses the
	// configured default.
	Stem string
}

// Result is the outcome of a run.
type Result struct {
	JobID        string
	InputPath    string
	Stem         string
	Status       queue.Status
	Stage        string
	Notes        segment.Stream
	Strategy     string
	Encoder      string
	Key          string
	MIDIPath     string
	MusicXMLPath string
	// Errors holds human-readable notes about failures and fallbacks, in
	// the order they happened.
	Errors []string
	// Err is the error that ended the run early, if any.
	Err      error
	Started  time.Time
	Finished time.Time
}

// NoteCount returns the number of notes in the stream.
func (r *Result) NoteCount() int {
	return len(r.Notes)
}

// Duration returns the run's wall time.
func (r *Result) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

func (r *Result) note(msg string) {
	r.Errors = append(r.Errors, msg)
}
