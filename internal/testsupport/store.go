package testsupport

import (
	"context"
	"testing"

	"soundsketch/internal/config"
	"soundsketch/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a job for the given source file using the provided store.
func NewJob(t testing.TB, store *queue.Store, sourcePath, stem string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), queue.NewJobParams{SourcePath: sourcePath, Stem: stem})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
