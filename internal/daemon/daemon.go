package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"soundsketch/internal/api"
	"soundsketch/internal/config"
	"soundsketch/internal/deps"
	"soundsketch/internal/fileutil"
	"soundsketch/internal/logging"
	"soundsketch/internal/queue"
	"soundsketch/internal/services"
	"soundsketch/internal/textutil"
	"soundsketch/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	jobs     *api.JobService
	http     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Address      string
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		jobs:     api.NewJobService(cfg, store),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.http = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager and begins
// serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another soundsketch daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.http.start(runCtx); err != nil {
		d.workflow.Stop()
		_ = d.lock.Unlock()
		cancel()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("soundsketch daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.http.address()),
	)
	return nil
}

// Stop stops the API, waits for in-flight jobs and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.http.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("soundsketch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Address returns the API listener address once started.
func (d *Daemon) Address() string {
	return d.http.address()
}

// Submit validates and stores an uploaded audio file, then queues a job for
// it and wakes the workers.
func (d *Daemon) Submit(ctx context.Context, filename string, body io.Reader) (*queue.Job, error) {
	name := textutil.SanitizeFileName(filepath.Base(strings.TrimSpace(filename)))
	ext := strings.ToLower(filepath.Ext(name))
	if name == "." || name == "" || !d.cfg.AllowsExtension(ext) {
		return nil, services.Wrap(services.ErrValidation, "upload", "validate",
			"Invalid file type. Allowed "+strings.Join(d.cfg.API.AllowedExtensions, ", "), nil)
	}

	id := uuid.NewString()
	dst := filepath.Join(d.cfg.Paths.UploadDir, id+ext)
	if err := os.MkdirAll(d.cfg.Paths.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure upload directory: %w", err)
	}
	written, err := fileutil.SaveLimited(body, dst, d.cfg.MaxUploadBytes())
	if err != nil {
		if errors.Is(err, fileutil.ErrTooLarge) {
			return nil, services.Wrap(services.ErrValidation, "upload", "save",
				fmt.Sprintf("file exceeds %d MB limit", d.cfg.API.MaxUploadMB), err)
		}
		return nil, fmt.Errorf("save upload: %w", err)
	}

	job, err := d.store.NewJob(ctx, queue.NewJobParams{
		ID:         id,
		SourcePath: dst,
		Filename:   name,
		Stem:       d.cfg.Transcription.DefaultStem,
	})
	if err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	logging.WithContext(services.WithJobID(ctx, job.ID), d.logger).Info("upload queued",
		logging.String(logging.FieldEventType, "job_queued"),
		logging.String("filename", name),
		logging.Int64("bytes", written),
	)
	d.workflow.Notify()
	return job, nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Address:      d.http.address(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Dependencies: []deps.Status{deps.CheckFFmpeg(d.cfg.Audio.FFmpegBinary)},
	}
}
