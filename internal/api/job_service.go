package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"soundsketch/internal/config"
	"soundsketch/internal/queue"
	"soundsketch/internal/services"
	"soundsketch/internal/workflow"
)

// DefaultListLimit is used when a caller asks for a non-positive limit.
const DefaultListLimit = 10

// ErrJobBusy reports an operation refused because a worker owns the job.
var ErrJobBusy = errors.New("job is being processed")

// JobStore abstracts the job persistence operations the API needs.
type JobStore interface {
	List(ctx context.Context, limit int, statuses ...queue.Status) ([]*queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id string) (*queue.Job, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// FileType selects which artifact a download refers to.
type FileType string

const (
	FileMIDI     FileType = "midi"
	FileMusicXML FileType = "musicxml"
)

// ParseFileType validates a download file type.
func ParseFileType(value string) (FileType, bool) {
	switch FileType(strings.ToLower(strings.TrimSpace(value))) {
	case FileMIDI:
		return FileMIDI, true
	case FileMusicXML:
		return FileMusicXML, true
	default:
		return "", false
	}
}

// ContentType returns the media type served for the artifact.
func (f FileType) ContentType() string {
	if f == FileMusicXML {
		return "application/vnd.recordare.musicxml+xml"
	}
	return "audio/midi"
}

// JobService exposes job operations returning API DTOs.
type JobService struct {
	cfg   *config.Config
	store JobStore
}

// NewJobService constructs a JobService around the provided store.
func NewJobService(cfg *config.Config, store JobStore) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{cfg: cfg, store: store}
}

// List returns up to limit jobs, newest first, filtered by status.
func (s *JobService) List(ctx context.Context, limit int, statuses ...queue.Status) ([]JobStatus, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	jobs, err := s.store.List(ctx, limit, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single job. A missing job returns (nil, nil).
func (s *JobService) Describe(ctx context.Context, id string) (*JobStatus, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// Remove deletes a job with its uploaded source, artifacts and log. It
// reports false when the job does not exist and ErrJobBusy while a worker
// holds it.
func (s *JobService) Remove(ctx context.Context, id string) (bool, error) {
	if s == nil || s.store == nil {
		return false, nil
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return false, err
	}
	if job.Status == queue.StatusProcessing {
		return false, ErrJobBusy
	}
	if err := workflow.RemoveJobFiles(s.cfg, job); err != nil {
		return false, fmt.Errorf("remove job files: %w", err)
	}
	return s.store.Delete(ctx, id)
}

// Download resolves the on-disk artifact for a finished job. Errors carry
// services.ErrNotFound or services.ErrValidation markers so transports can
// map them to status codes.
func (s *JobService) Download(ctx context.Context, id string, fileType FileType, instrument string) (string, error) {
	if s == nil || s.store == nil {
		return "", services.Wrap(services.ErrNotFound, "api", "download", "job not found", nil)
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", services.Wrap(services.ErrNotFound, "api", "download", "job not found", nil)
	}
	if !job.Status.HasArtifacts() {
		return "", services.Wrap(services.ErrValidation, "api", "download", "job not completed yet", nil)
	}
	var path string
	if strings.EqualFold(strings.TrimSpace(instrument), job.Stem) {
		switch fileType {
		case FileMIDI:
			path = job.MIDIPath
		case FileMusicXML:
			path = job.MusicXMLPath
		}
	}
	if strings.TrimSpace(path) == "" {
		return "", services.Wrap(services.ErrNotFound, "api", "download",
			fmt.Sprintf("file not found for instrument: %s", instrument), nil)
	}
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrNotFound, "api", "download", "file not found on disk", nil)
	}
	return path, nil
}
