package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"soundsketch/internal/logging"
	"soundsketch/internal/queue"
	"soundsketch/internal/services"
	"soundsketch/internal/stageexec"
)

// Start runs preflight checks, resets jobs abandoned by a previous process and
// launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	m.mu.Unlock()

	if err := m.runPreflightChecks(ctx); err != nil {
		return err
	}
	if reset, err := m.store.ResetStuckProcessing(ctx); err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	} else if reset > 0 {
		m.logger.Info("requeued jobs left in processing",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "jobs_requeued"),
		)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(m.workers + 1)
	for i := range m.workers {
		go m.runWorker(runCtx, i)
	}
	go m.runRetention(runCtx)

	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Duration("poll_interval", m.pollInterval),
	)
	return nil
}

// Stop stops claiming new jobs and waits for in-flight runs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	worker := fmt.Sprintf("worker-%d", index+1)
	ctx = services.WithWorker(ctx, worker)
	logger := logging.WithContext(ctx, m.logger)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// One reclaimer is enough; the store update is idempotent.
		if index == 0 {
			if err := m.heartbeat.ReclaimStaleJobs(ctx, logger); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(logger, "reclaim stale jobs failed; stuck jobs may remain", "heartbeat_reclaim_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}

		job, err := m.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}
		m.processJob(ctx, logger, job)
	}
}

// processJob runs one claimed job. The run itself is detached from ctx so a
// shutdown lets it reach a terminal state; the job timeout still applies.
func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	jobCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()
	jobCtx = services.WithJobID(jobCtx, job.ID)

	jobLogger, closeLog := m.openJobLog(jobCtx, logger, job)
	defer closeLog()

	var hb sync.WaitGroup
	hb.Add(1)
	go m.heartbeat.StartLoop(jobCtx, &hb, job.ID)

	_, err := stageexec.Run(jobCtx, stageexec.Options{
		Logger: jobLogger,
		Store:  m.store,
		Runner: m.runner,
		Job:    job,
	})
	stop()
	hb.Wait()

	m.setLastJob(job)
	if err != nil {
		m.setLastError(err)
	}
}

// openJobLog tees the worker logger into the job's own log file. Failures
// only cost the per-job file; the run proceeds with the worker logger.
func (m *Manager) openJobLog(ctx context.Context, logger *slog.Logger, job *queue.Job) (*slog.Logger, func()) {
	noop := func() {}
	path, created, err := m.jobLogs.Ensure(job)
	if err != nil {
		logger.Debug("job log unavailable", logging.Error(err))
		return logger, noop
	}
	handler, closer, err := m.jobLogs.CreateHandler(path)
	if err != nil {
		logging.WarnWithContext(logger, "job log file unavailable; logging to daemon log only", "job_log_unavailable",
			logging.String("path", path),
			logging.Error(err),
		)
		return logger, noop
	}
	if created {
		if err := m.store.Update(ctx, job); err != nil {
			logger.Debug("persist job log path failed", logging.Error(err))
		}
	}
	return logging.TeeLogger(logger, handler), func() { _ = closer.Close() }
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "failed to claim next job", "queue_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(errorRetryDelay):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) runRetention(ctx context.Context) {
	defer m.wg.Done()
	if m.cfg.Retention() <= 0 {
		return
	}
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		m.retention.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
