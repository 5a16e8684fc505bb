package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Version is reported by the index endpoint.
const Version = "1.0.0"

// FileInfo describes one downloadable artifact.
type FileInfo struct {
	Instrument string `json:"instrument"`
	Path       string `json:"path"`
}

// JobStatus describes a job in a transport-friendly format.
type JobStatus struct {
	JobID        string     `json:"job_id"`
	Status       string     `json:"status"`
	Filename     string     `json:"filename,omitempty"`
	Stem         string     `json:"stem"`
	Stage        string     `json:"stage,omitempty"`
	CreatedAt    string     `json:"created_at"`
	StartedAt    string     `json:"started_at,omitempty"`
	CompletedAt  *string    `json:"completed_at"`
	NoteCount    int        `json:"note_count"`
	MusicXML     []FileInfo `json:"musicxml_files"`
	MIDI         []FileInfo `json:"midi_files"`
	Errors       []string   `json:"errors"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ConversionResponse acknowledges an accepted upload.
type ConversionResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobStatus `json:"jobs"`
}

// MessageResponse carries a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse carries a request failure.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// IndexResponse describes the service and its endpoints.
type IndexResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Workflow  *WorkflowStatus `json:"workflow,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	Workers    int            `json:"workers"`
	QueueStats map[string]int `json:"queue_stats"`
	LastError  string         `json:"last_error,omitempty"`
	LastJob    *JobStatus     `json:"last_job,omitempty"`
	Pipeline   StageHealth    `json:"pipeline"`
}

// StageHealth mirrors readiness reporting for the pipeline.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}
