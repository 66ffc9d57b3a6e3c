package testsupport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"archivist/internal/config"
	"archivist/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a pending transfer job for tests and returns it.
func NewJob(t testing.TB, store *jobs.Store, id, identifier string) *jobs.Job {
	t.Helper()

	job := &jobs.Job{
		ID:         id,
		Kind:       jobs.KindTransfer,
		Status:     jobs.StatusPending,
		Identifier: identifier,
		CreatedAt:  time.Now().UTC(),
	}
	optionsJSON, err := json.Marshal(jobs.Options{Retries: 5, SkipExisting: true})
	if err != nil {
		t.Fatalf("marshal options: %v", err)
	}
	if err := store.Create(context.Background(), job, string(optionsJSON)); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
