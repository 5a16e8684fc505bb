package workflow

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"soundsketch/internal/config"
	"soundsketch/internal/logging"
	"soundsketch/internal/queue"
)

// RetentionSweeper deletes finished jobs, and everything they left on disk,
// once they are older than the configured retention.
type RetentionSweeper struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRetentionSweeper creates a sweeper for cfg's retention window.
func NewRetentionSweeper(cfg *config.Config, store *queue.Store, logger *slog.Logger) *RetentionSweeper {
	return &RetentionSweeper{cfg: cfg, store: store, logger: logger, now: time.Now}
}

// Sweep removes expired jobs and returns how many were deleted. A
// non-positive retention disables it.
func (r *RetentionSweeper) Sweep(ctx context.Context) int {
	retention := r.cfg.Retention()
	if retention <= 0 {
		return 0
	}
	cutoff := r.now().Add(-retention)
	jobs, err := r.store.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(r.logger, "retention sweep skipped", "retention_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return 0
	}
	removed := 0
	for _, job := range jobs {
		if err := RemoveJobFiles(r.cfg, job); err != nil {
			logging.WarnWithContext(r.logger, "expired job files not fully removed", "retention_remove_failed",
				logging.String("job_id", job.ID),
				logging.Error(err),
			)
		}
		ok, err := r.store.Delete(ctx, job.ID)
		if err != nil {
			logging.WarnWithContext(r.logger, "expired job not deleted", "retention_delete_failed",
				logging.String("job_id", job.ID),
				logging.Error(err),
			)
			continue
		}
		if ok {
			removed++
		}
	}
	logs := logging.CleanupOldLogs(r.logger, retention, NewJobLogger(r.cfg).Dir(), jobLogPattern)
	if removed > 0 || logs > 0 {
		r.logger.Info("retention sweep removed expired jobs",
			logging.Int("jobs", removed),
			logging.Int("log_files", logs),
			logging.String(logging.FieldEventType, "retention_sweep"),
		)
	}
	return removed
}

// RemoveJobFiles deletes a job's output directory, its uploaded source when it
// lives in the upload directory, and its log file. Missing files are ignored.
func RemoveJobFiles(cfg *config.Config, job *queue.Job) error {
	if job == nil {
		return nil
	}
	var errs []error
	if id := strings.TrimSpace(job.ID); id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".." {
		if err := os.RemoveAll(cfg.JobOutputDir(id)); err != nil {
			errs = append(errs, err)
		}
	}
	if within(cfg.Paths.UploadDir, job.SourcePath) {
		errs = append(errs, removeIfExists(job.SourcePath))
	}
	if strings.TrimSpace(job.LogPath) != "" {
		errs = append(errs, removeIfExists(job.LogPath))
	}
	return errors.Join(errs...)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// within reports whether path is inside dir. CLI jobs point at the user's own
// files, which must never be removed.
func within(dir, path string) bool {
	if strings.TrimSpace(dir) == "" || strings.TrimSpace(path) == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}
