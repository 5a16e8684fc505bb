package workflow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"soundsketch/internal/config"
	"soundsketch/internal/logging"
	"soundsketch/internal/queue"
	"soundsketch/internal/textutil"
)

// jobLogPattern matches the files JobLogger creates, for retention pruning.
const jobLogPattern = "*.log"

// JobLogger manages the dedicated log file of each job.
type JobLogger struct {
	baseDir string
	format  string
	level   string
}

// NewJobLogger creates a job logger writing under <log_dir>/jobs.
func NewJobLogger(cfg *config.Config) *JobLogger {
	j := &JobLogger{format: "json", level: "info"}
	if cfg == nil {
		return j
	}
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		j.baseDir = filepath.Join(cfg.Paths.LogDir, "jobs")
	}
	if strings.TrimSpace(cfg.Logging.Format) != "" {
		j.format = cfg.Logging.Format
	}
	if strings.TrimSpace(cfg.Logging.Level) != "" {
		j.level = cfg.Logging.Level
	}
	return j
}

// Dir returns the job log directory.
func (j *JobLogger) Dir() string {
	return j.baseDir
}

// Ensure assigns a log path to the job when it has none and creates its
// directory. created reports whether the path was newly assigned.
func (j *JobLogger) Ensure(job *queue.Job) (path string, created bool, err error) {
	if job == nil {
		return "", false, errors.New("job is nil")
	}
	if strings.TrimSpace(j.baseDir) == "" {
		return "", false, errors.New("job log directory not configured")
	}
	if strings.TrimSpace(job.LogPath) == "" {
		job.LogPath = filepath.Join(j.baseDir, j.filename(job))
		created = true
	}
	if err := os.MkdirAll(filepath.Dir(job.LogPath), 0o755); err != nil {
		return "", false, fmt.Errorf("ensure job log directory: %w", err)
	}
	return job.LogPath, created, nil
}

// CreateHandler builds a slog.Handler appending to path. The caller closes
// the returned closer when the job finishes.
func (j *JobLogger) CreateHandler(path string) (slog.Handler, io.Closer, error) {
	return logging.NewFileHandler(path, j.format, j.level)
}

func (j *JobLogger) filename(job *queue.Job) string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	name := textutil.Slug(strings.TrimSuffix(job.DisplayName(), filepath.Ext(job.DisplayName())))
	if name == "" {
		name = "untitled"
	}
	return fmt.Sprintf("%s-%s-%s.log", timestamp, job.ID, name)
}
