package workflow

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"soundsketch/internal/logging"
	"soundsketch/internal/pipeline"
	"soundsketch/internal/queue"
	"soundsketch/internal/segment"
	"soundsketch/internal/stage"
	"soundsketch/internal/testsupport"
)

type stubRunner struct {
	mu    sync.Mutex
	calls []string
	// release, when set, blocks each run until closed.
	release chan struct{}
}

func (s *stubRunner) RunRequest(ctx context.Context, req pipeline.Request) *pipeline.Result {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	s.calls = append(s.calls, req.JobID)
	s.mu.Unlock()
	return &pipeline.Result{
		JobID:    req.JobID,
		Stem:     req.Stem,
		Status:   queue.StatusCompleted,
		Notes:    segment.Stream{{Pitch: 60, Start: 0, End: 0.5, Velocity: 80}},
		MIDIPath: filepath.Join("out", req.JobID+".mid"),
		Started:  time.Now(),
		Finished: time.Now(),
	}
}

func (s *stubRunner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubRunner) HealthCheck(context.Context) stage.Health {
	return stage.Unhealthy("pipeline", "stub degraded")
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach %s", id, want)
	return nil
}

func TestManagerProcessesQueuedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	store := testsupport.MustOpenStore(t, cfg)
	runner := &stubRunner{}

	first := testsupport.NewJob(t, store, filepath.Join(cfg.Paths.UploadDir, "a.wav"), "vocals")
	second := testsupport.NewJob(t, store, filepath.Join(cfg.Paths.UploadDir, "b.wav"), "bass")

	mgr := NewManager(cfg, store, logging.NewNop(), WithRunner(runner))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	for _, id := range []string{first.ID, second.ID} {
		job := waitForStatus(t, store, id, queue.StatusCompleted)
		if job.NoteCount != 1 || job.Stage != "Completed" {
			t.Fatalf("unexpected job record: %+v", job)
		}
		if job.CompletedAt == nil || job.LastHeartbeat != nil {
			t.Fatalf("expected completion timestamps to be set: %+v", job)
		}
		if job.LogPath == "" {
			t.Fatal("expected job log path to be assigned")
		}
		if _, err := os.Stat(job.LogPath); err != nil {
			t.Fatalf("expected job log file: %v", err)
		}
	}
	if runner.count() != 2 {
		t.Fatalf("expected two runs, got %d", runner.count())
	}
}

func TestManagerNotifyWakesIdleWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 60
	store := testsupport.MustOpenStore(t, cfg)
	runner := &stubRunner{}

	mgr := NewManager(cfg, store, logging.NewNop(), WithRunner(runner))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	// Let the worker find the queue empty and go idle.
	time.Sleep(200 * time.Millisecond)
	job := testsupport.NewJob(t, store, filepath.Join(cfg.Paths.UploadDir, "late.wav"), "vocals")
	mgr.Notify()

	waitForStatus(t, store, job.ID, queue.StatusCompleted)
}

func TestManagerRequeuesJobsLeftProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, filepath.Join(cfg.Paths.UploadDir, "stuck.wav"), "vocals")
	if claimed, err := store.ClaimNext(context.Background()); err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %v %v", claimed, err)
	}

	mgr := NewManager(cfg, store, logging.NewNop(), WithRunner(&stubRunner{}))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	waitForStatus(t, store, job.ID, queue.StatusCompleted)
}

func TestManagerStopWaitsForInFlightRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := &stubRunner{release: make(chan struct{})}
	job := testsupport.NewJob(t, store, filepath.Join(cfg.Paths.UploadDir, "slow.wav"), "vocals")

	mgr := NewManager(cfg, store, logging.NewNop(), WithRunner(runner))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, store, job.ID, queue.StatusProcessing)

	stopped := make(chan struct{})
	go func() {
		mgr.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(100 * time.Millisecond):
	}
	close(runner.release)
	<-stopped

	got, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("expected in-flight job to finish, got %s", got.Status)
	}
}

func TestManagerStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := NewManager(cfg, store, logging.NewNop(), WithRunner(&stubRunner{}))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestManagerStartFailsPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := os.RemoveAll(cfg.Paths.OutputDir); err != nil {
		t.Fatalf("remove output dir: %v", err)
	}
	mgr := NewManager(cfg, store, logging.NewNop(), WithRunner(&stubRunner{}))
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected preflight failure for missing output directory")
	}
}

func TestStatusReportsQueueAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, filepath.Join(cfg.Paths.UploadDir, "a.wav"), "vocals")

	mgr := NewManager(cfg, store, logging.NewNop(), WithRunner(&stubRunner{}))
	status := mgr.Status(context.Background())
	if status.Running {
		t.Fatal("expected manager to be idle before Start")
	}
	if status.QueueStats[queue.StatusQueued] != 1 {
		t.Fatalf("unexpected queue stats: %v", status.QueueStats)
	}
	if status.Pipeline.Ready || status.Pipeline.Detail != "stub degraded" {
		t.Fatalf("expected runner health to be reported, got %+v", status.Pipeline)
	}
}

func TestManagerRunsRealPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	src := filepath.Join(cfg.Paths.UploadDir, "silence.wav")
	testsupport.WriteSilentWAV(t, src, cfg.Audio.SampleRate, 1)
	job := testsupport.NewJob(t, store, src, "piano")

	mgr := NewManager(cfg, store, logging.NewNop())
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	done := waitForStatus(t, store, job.ID, queue.StatusCompleted)
	if done.MIDIPath != filepath.Join(cfg.JobOutputDir(job.ID), "midi", "piano.mid") {
		t.Fatalf("unexpected midi path %q", done.MIDIPath)
	}
	if _, err := os.Stat(done.MusicXMLPath); err != nil {
		t.Fatalf("expected musicxml artifact: %v", err)
	}
}
