package queue

import (
	"path/filepath"
	"strings"
	"time"
)

// Status represents the lifecycle of a transcription job.
type Status string

const (
	StatusQueued              Status = "queued"
	StatusProcessing          Status = "processing"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// DaemonStopReason is recorded on jobs interrupted by daemon shutdown.
const DaemonStopReason = "Daemon stopped before the job finished"

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusCompletedWithErrors,
	StatusFailed,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions happen from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	default:
		return false
	}
}

// HasArtifacts reports whether jobs in status s may expose downloadable files.
func (s Status) HasArtifacts() bool {
	return s == StatusCompleted || s == StatusCompletedWithErrors
}

// Job represents a transcription job persisted in SQLite.
type Job struct {
	ID            string
	SourcePath    string
	Filename      string
	Stem          string
	Status        Status
	Stage         string
	MIDIPath      string
	MusicXMLPath  string
	NoteCount     int
	Errors        []string
	ErrorMessage  string
	LogPath       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	LastHeartbeat *time.Time
}

// DisplayName returns the uploaded filename, or the source file's base name.
func (j *Job) DisplayName() string {
	if j == nil {
		return ""
	}
	if name := strings.TrimSpace(j.Filename); name != "" {
		return name
	}
	return filepath.Base(j.SourcePath)
}

// Duration reports how long a finished job ran.
func (j *Job) Duration() time.Duration {
	if j == nil || j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Failed     int
}
