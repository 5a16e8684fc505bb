package queue

import (
	"context"
	"fmt"
	"time"
)

// ClaimNext atomically moves the oldest queued job to processing and returns
// it. It returns (nil, nil) when nothing is queued. Concurrent callers never
// receive the same job.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	var id string
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`UPDATE jobs
             SET status = ?, stage = ?, started_at = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = (
                 SELECT id FROM jobs WHERE status = ? ORDER BY created_at, rowid LIMIT 1
             ) AND status = ?
             RETURNING id`,
			StatusProcessing,
			"Starting transcription",
			now, now, now,
			StatusQueued,
			StatusQueued,
		)
		return row.Scan(&id)
	})
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// UpdateStage records a human-readable progress stage for an in-flight job.
func (s *Store) UpdateStage(ctx context.Context, id, stage string) error {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET stage = ?, updated_at = ? WHERE id = ? AND status = ?`,
		stage, now, id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	return nil
}

// ReclaimStale requeues processing jobs whose heartbeat expired before cutoff.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, stage = 'Reclaimed from stale processing',
             started_at = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusQueued,
		formatTime(time.Now()),
		StatusProcessing,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing requeues every processing job. The daemon calls it at
// startup, when no worker can legitimately own a run.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, stage = 'Reset from stuck processing',
             started_at = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`,
		StatusQueued,
		formatTime(time.Now()),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// Finish records the terminal state of a job claimed by the caller.
func (s *Store) Finish(ctx context.Context, job *Job) error {
	if !job.Status.IsTerminal() {
		return fmt.Errorf("finish job %s: status %q is not terminal", job.ID, job.Status)
	}
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.LastHeartbeat = nil
	return s.Update(ctx, job)
}
