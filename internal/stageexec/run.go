package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"soundsketch/internal/logging"
	"soundsketch/internal/pipeline"
	"soundsketch/internal/queue"
	"soundsketch/internal/services"
	"soundsketch/internal/stage"
)

// Runner executes one transcription.
type Runner interface {
	RunRequest(ctx context.Context, req pipeline.Request) *pipeline.Result
}

// Options controls job execution and queue persistence behavior.
type Options struct {
	Logger *slog.Logger
	Store  *queue.Store
	Runner Runner
	// Job must already be claimed, i.e. in processing.
	Job *queue.Job
}

// Run executes a claimed job through the pipeline and persists the terminal
// state. The returned error covers persistence problems only; transcription
// outcomes are recorded on the job.
func Run(ctx context.Context, opts Options) (*pipeline.Result, error) {
	if opts.Runner == nil {
		return nil, errors.New("pipeline runner is required")
	}
	if opts.Store == nil {
		return nil, errors.New("queue store is required")
	}
	if opts.Job == nil {
		return nil, errors.New("queue job is required")
	}
	job := opts.Job
	jobCtx := services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(jobCtx, opts.Logger)

	logger.Info(
		"job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source_file", strings.TrimSpace(job.SourcePath)),
		logging.String("stem", job.Stem),
	)

	res := opts.Runner.RunRequest(jobCtx, pipeline.Request{
		InputPath: job.SourcePath,
		JobID:     job.ID,
		Stem:      job.Stem,
	})
	ApplyResult(job, res)

	// Persist even when the run's context was cancelled mid-flight.
	persistCtx := context.WithoutCancel(ctx)
	if err := opts.Store.Finish(persistCtx, job); err != nil {
		logger.Error("failed to persist job result", logging.Error(err))
		return res, fmt.Errorf("persist job result: %w", err)
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("status", string(job.Status)),
		logging.Int("notes", job.NoteCount),
		logging.Duration("elapsed", res.Duration()),
	}
	switch job.Status {
	case queue.StatusFailed:
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			append(attrs, logging.String("error_message", job.ErrorMessage))...)
	case queue.StatusCompletedWithErrors:
		logging.WarnWithContext(logger, "job completed with errors", "job_completed_with_errors",
			append(attrs,
				logging.Int("error_count", len(job.Errors)),
				logging.String(logging.FieldImpact, "some artifacts may be missing"),
			)...)
	default:
		logger.Info("job completed", logging.Args(attrs...)...)
	}
	return res, nil
}

// ApplyResult copies a run's outcome onto the job record.
func ApplyResult(job *queue.Job, res *pipeline.Result) {
	status := res.Status
	if !status.IsTerminal() {
		status = services.FailureStatus(res.Err)
		if status == queue.StatusCompleted {
			status = queue.StatusFailed
		}
	}
	job.Status = status
	job.Stage = terminalStage(status)
	job.MIDIPath = res.MIDIPath
	job.MusicXMLPath = res.MusicXMLPath
	job.NoteCount = res.NoteCount()
	job.Errors = append([]string(nil), res.Errors...)
	job.ErrorMessage = ""
	if status == queue.StatusFailed {
		job.ErrorMessage = failureMessage(res)
	}
}

// StoreObserver persists stage transitions as the job's progress label.
func StoreObserver(store *queue.Store, logger *slog.Logger) stage.Observer {
	return stage.ObserverFunc(func(ctx context.Context, jobID string, name stage.Name) {
		if err := store.UpdateStage(context.WithoutCancel(ctx), jobID, name.Label()); err != nil {
			logging.WithContext(ctx, logger).Debug("stage update failed", logging.Error(err))
		}
	})
}

func terminalStage(status queue.Status) string {
	switch status {
	case queue.StatusCompleted:
		return "Completed"
	case queue.StatusCompletedWithErrors:
		return "Completed with errors"
	default:
		return "Failed"
	}
}

func failureMessage(res *pipeline.Result) string {
	if res.Err != nil {
		if msg := strings.TrimSpace(services.Details(res.Err)); msg != "" {
			return msg
		}
	}
	if len(res.Errors) > 0 {
		return res.Errors[len(res.Errors)-1]
	}
	return "transcription failed"
}
