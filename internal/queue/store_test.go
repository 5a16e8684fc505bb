package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"soundsketch/internal/queue"
	"soundsketch/internal/testsupport"
)

func TestOpenCreatesSchemaAndRoundTripsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.NewJob(ctx, queue.NewJobParams{
		SourcePath: "/tmp/song.wav",
		Filename:   "song.wav",
		Stem:       "vocals",
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("expected queued status, got %s", job.Status)
	}

	job.Errors = []string{"pitch tracking produced no notes"}
	job.NoteCount = 3
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.DisplayName() != "song.wav" || fetched.NoteCount != 3 {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
	if len(fetched.Errors) != 1 || fetched.Errors[0] != "pitch tracking produced no notes" {
		t.Fatalf("errors did not round trip: %v", fetched.Errors)
	}

	// Reopening the same database must accept the existing schema.
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	reopened := testsupport.MustOpenStore(t, cfg)
	again, err := reopened.GetByID(ctx, job.ID)
	if err != nil || again == nil {
		t.Fatalf("expected job after reopen, got %v (err=%v)", again, err)
	}
}

func TestNewJobValidatesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewJob(ctx, queue.NewJobParams{Stem: "vocals"}); err == nil {
		t.Fatal("expected error for missing source path")
	}
	if _, err := store.NewJob(ctx, queue.NewJobParams{SourcePath: "/tmp/a.wav"}); err == nil {
		t.Fatal("expected error for missing stem")
	}
	job, err := store.NewJob(ctx, queue.NewJobParams{ID: "fixed-id", SourcePath: "/tmp/a.wav", Stem: "bass"})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.ID != "fixed-id" {
		t.Fatalf("expected caller supplied id, got %q", job.ID)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetByID(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %#v", job)
	}
}

func TestClaimNextIsFIFOAndExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "/tmp/first.wav", "vocals")
	second := testsupport.NewJob(t, store, "/tmp/second.wav", "vocals")

	claimed, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest job %s, got %#v", first.ID, claimed)
	}
	if claimed.Status != queue.StatusProcessing || claimed.StartedAt == nil || claimed.LastHeartbeat == nil {
		t.Fatalf("claim did not mark job processing: %#v", claimed)
	}

	next, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected second job, got %#v", next)
	}

	none, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext on empty queue failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no job, got %#v", none)
	}
}

func TestClaimNextConcurrentWorkersNeverShareJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	const jobs = 8
	for range jobs {
		testsupport.NewJob(t, store, "/tmp/track.wav", "vocals")
	}

	var (
		mu      sync.Mutex
		seen    = make(map[string]int)
		wg      sync.WaitGroup
		errOnce error
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := store.ClaimNext(ctx)
				if err != nil {
					mu.Lock()
					errOnce = err
					mu.Unlock()
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if errOnce != nil {
		t.Fatalf("ClaimNext failed: %v", errOnce)
	}
	if len(seen) != jobs {
		t.Fatalf("expected %d distinct claims, got %d", jobs, len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("job %s claimed %d times", id, count)
		}
	}
}

func TestReclaimStaleRequeuesExpiredHeartbeats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/tmp/a.wav", "vocals")
	claimed, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", claimed, err)
	}

	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("fresh heartbeat should not be reclaimed, got %d", reclaimed)
	}

	reclaimed, err = store.ReclaimStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected one reclaimed job, got %d", reclaimed)
	}
	job, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job.Status != queue.StatusQueued || job.LastHeartbeat != nil || job.StartedAt != nil {
		t.Fatalf("expected job requeued with cleared timestamps, got %#v", job)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/tmp/a.wav", "vocals")
	testsupport.NewJob(t, store, "/tmp/b.wav", "vocals")
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reset job, got %d", count)
	}
	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Queued != 2 || health.Processing != 0 || health.Total != 2 {
		t.Fatalf("unexpected health after reset: %+v", health)
	}
}

func TestHeartbeatAndStageOnlyTouchProcessingJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	queued := testsupport.NewJob(t, store, "/tmp/a.wav", "vocals")
	if err := store.UpdateStage(ctx, queued.ID, "Analyzing pitch"); err != nil {
		t.Fatalf("UpdateStage failed: %v", err)
	}
	unchanged, _ := store.GetByID(ctx, queued.ID)
	if unchanged.Stage == "Analyzing pitch" {
		t.Fatal("stage should not change for a queued job")
	}

	claimed, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", claimed, err)
	}
	if err := store.UpdateStage(ctx, claimed.ID, "Analyzing pitch"); err != nil {
		t.Fatalf("UpdateStage failed: %v", err)
	}
	if err := store.UpdateHeartbeat(ctx, claimed.ID); err != nil {
		t.Fatalf("UpdateHeartbeat failed: %v", err)
	}
	updated, _ := store.GetByID(ctx, claimed.ID)
	if updated.Stage != "Analyzing pitch" {
		t.Fatalf("expected stage update, got %q", updated.Stage)
	}
	if updated.LastHeartbeat == nil || updated.LastHeartbeat.Before(*claimed.LastHeartbeat) {
		t.Fatalf("heartbeat did not advance: before=%v after=%v", claimed.LastHeartbeat, updated.LastHeartbeat)
	}
}

func TestFinishRequiresTerminalStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/tmp/a.wav", "vocals")
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", job, err)
	}

	if err := store.Finish(ctx, job); err == nil {
		t.Fatal("expected Finish to reject a processing status")
	}

	job.Status = queue.StatusCompletedWithErrors
	job.Errors = []string{"notation rendering failed"}
	if err := store.Finish(ctx, job); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	finished, _ := store.GetByID(ctx, job.ID)
	if finished.CompletedAt == nil || finished.LastHeartbeat != nil {
		t.Fatalf("expected completion timestamp and cleared heartbeat: %#v", finished)
	}
	if !finished.Status.HasArtifacts() {
		t.Fatalf("completed_with_errors should expose artifacts")
	}
	if finished.Duration() < 0 {
		t.Fatalf("unexpected negative duration %v", finished.Duration())
	}
}

func TestListOrdersNewestFirstAndFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "/tmp/1.wav", "vocals")
	second := testsupport.NewJob(t, store, "/tmp/2.wav", "vocals")
	third := testsupport.NewJob(t, store, "/tmp/3.wav", "vocals")

	jobs, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 3 || jobs[0].ID != third.ID || jobs[2].ID != first.ID {
		t.Fatalf("unexpected ordering: %v", ids(jobs))
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List with limit failed: %v", err)
	}
	if len(limited) != 2 || limited[1].ID != second.ID {
		t.Fatalf("unexpected limited list: %v", ids(limited))
	}

	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	processing, err := store.List(ctx, 0, queue.StatusProcessing)
	if err != nil {
		t.Fatalf("List filtered failed: %v", err)
	}
	if len(processing) != 1 || processing[0].ID != first.ID {
		t.Fatalf("unexpected filtered list: %v", ids(processing))
	}
}

func TestDeleteAndUpdateMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/a.wav", "vocals")
	removed, err := store.Delete(ctx, job.ID)
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}
	removed, err = store.Delete(ctx, job.ID)
	if err != nil || removed {
		t.Fatalf("second Delete: removed=%v err=%v", removed, err)
	}
	if err := store.Update(ctx, job); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows updating deleted job, got %v", err)
	}
}

func TestListFinishedBefore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/tmp/a.wav", "vocals")
	testsupport.NewJob(t, store, "/tmp/b.wav", "vocals")
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", job, err)
	}
	job.Status = queue.StatusFailed
	job.ErrorMessage = "decode failed"
	if err := store.Finish(ctx, job); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	expired, err := store.ListFinishedBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ListFinishedBefore failed: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != job.ID {
		t.Fatalf("expected finished job only, got %v", ids(expired))
	}

	none, err := store.ListFinishedBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListFinishedBefore failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no expired jobs, got %v", ids(none))
	}
}

func TestParseStatus(t *testing.T) {
	status, ok := queue.ParseStatus(" Completed_With_Errors ")
	if !ok || status != queue.StatusCompletedWithErrors {
		t.Fatalf("unexpected parse result %q ok=%v", status, ok)
	}
	if _, ok := queue.ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	for _, s := range queue.AllStatuses() {
		if s == queue.StatusQueued && s.IsTerminal() {
			t.Fatal("queued must not be terminal")
		}
	}
}

func ids(jobs []*queue.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.ID)
	}
	return out
}
