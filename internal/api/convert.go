package api

import (
	"strings"
	"time"

	"soundsketch/internal/deps"
	"soundsketch/internal/queue"
	"soundsketch/internal/workflow"
)

// FromJob converts a job record to its API representation.
func FromJob(job *queue.Job) JobStatus {
	if job == nil {
		return JobStatus{}
	}
	dto := JobStatus{
		JobID:        job.ID,
		Status:       string(job.Status),
		Filename:     job.Filename,
		Stem:         job.Stem,
		Stage:        job.Stage,
		CreatedAt:    FormatTime(job.CreatedAt),
		NoteCount:    job.NoteCount,
		MusicXML:     []FileInfo{},
		MIDI:         []FileInfo{},
		Errors:       append([]string{}, job.Errors...),
		ErrorMessage: job.ErrorMessage,
	}
	if job.StartedAt != nil {
		dto.StartedAt = FormatTime(*job.StartedAt)
	}
	if job.CompletedAt != nil {
		completed := FormatTime(*job.CompletedAt)
		dto.CompletedAt = &completed
	}
	if path := strings.TrimSpace(job.MIDIPath); path != "" {
		dto.MIDI = append(dto.MIDI, FileInfo{Instrument: job.Stem, Path: path})
	}
	if path := strings.TrimSpace(job.MusicXMLPath); path != "" {
		dto.MusicXML = append(dto.MusicXML, FileInfo{Instrument: job.Stem, Path: path})
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(jobs []*queue.Job) []JobStatus {
	out := make([]JobStatus, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:    summary.Running,
		Workers:    summary.Workers,
		QueueStats: MergeQueueStats(summary.QueueStats),
		LastError:  summary.LastError,
		Pipeline: StageHealth{
			Name:   summary.Pipeline.Name,
			Ready:  summary.Pipeline.Ready,
			Detail: summary.Pipeline.Detail,
		},
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// FromDependencies converts dependency probes to API payload.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// MergeQueueStats produces a string-keyed representation of queue stats
// with every status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
