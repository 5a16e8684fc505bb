package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"

	"soundsketch/internal/config"
	"soundsketch/internal/logging"
	"soundsketch/internal/pipeline"
	"soundsketch/internal/queue"
	"soundsketch/internal/stage"
	"soundsketch/internal/stageexec"
)

const (
	notifyDebounce    = 100 * time.Millisecond
	errorRetryDelay   = 5 * time.Second
	retentionInterval = 10 * time.Minute
)

// Manager coordinates queue processing across a pool of workers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	runner       stageexec.Runner
	checker      stage.Checker
	logger       *slog.Logger
	pollInterval time.Duration
	workers      int

	heartbeat *HeartbeatMonitor
	jobLogs   *JobLogger
	retention *RetentionSweeper

	wake     chan struct{}
	debounce func(func())

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithRunner replaces the default pipeline runner, mainly for tests.
func WithRunner(runner stageexec.Runner) Option {
	return func(m *Manager) { m.runner = runner }
}

// WithChecker overrides the health check reported by Status.
func WithChecker(checker stage.Checker) Option {
	return func(m *Manager) { m.checker = checker }
}

// NewManager constructs a workflow manager. Without WithRunner the default
// pipeline is wired with an observer that persists stage progress.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		workers:      workers,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		jobLogs:   NewJobLogger(cfg),
		retention: NewRetentionSweeper(cfg, store, logger),
		wake:      make(chan struct{}, workers),
		debounce:  debounce.New(notifyDebounce),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.runner == nil {
		orchestrator := pipeline.New(cfg, logger, pipeline.WithObserver(stageexec.StoreObserver(store, logger)))
		m.runner = orchestrator
		if m.checker == nil {
			m.checker = orchestrator
		}
	}
	if m.checker == nil {
		if checker, ok := m.runner.(stage.Checker); ok {
			m.checker = checker
		}
	}
	return m
}

// Notify wakes idle workers after a short debounce. Bursts of submissions
// collapse into a single wake-up.
func (m *Manager) Notify() {
	m.debounce(m.signal)
}

func (m *Manager) signal() {
	for range m.workers {
		select {
		case m.wake <- struct{}{}:
		default:
			return
		}
	}
}
