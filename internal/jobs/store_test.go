package jobs_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"archivist/internal/jobs"
	"archivist/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "ab12cd34", "some-item")

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Identifier != "some-item" {
		t.Fatalf("unexpected identifier: %s", fetched.Identifier)
	}
	if fetched.Status != jobs.StatusPending {
		t.Fatalf("unexpected status: %s", fetched.Status)
	}
	if fetched.StartedAt != nil || fetched.CompletedAt != nil {
		t.Fatal("timestamps should be unset at creation")
	}
}

func TestGetByIDMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.GetByID(context.Background(), "nope"); err != jobs.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkRunningWritesStartedAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "run00001", "item")

	started := time.Now().UTC()
	if err := store.MarkRunning(ctx, job.ID, started); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != jobs.StatusRunning {
		t.Fatalf("unexpected status: %s", fetched.Status)
	}
	if fetched.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}
}

func TestMarkTerminalPersistsOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "term0001", "item")
	job.Status = jobs.StatusFailed
	job.ErrorMessage = "remote refused"
	job.Progress = 42.5

	if err := store.MarkTerminal(ctx, job, time.Now()); err != nil {
		t.Fatalf("MarkTerminal failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != jobs.StatusFailed {
		t.Fatalf("unexpected status: %s", fetched.Status)
	}
	if fetched.ErrorMessage != "remote refused" {
		t.Fatalf("unexpected error message: %q", fetched.ErrorMessage)
	}
	if fetched.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
	if fetched.Progress != 42.5 {
		t.Fatalf("unexpected progress: %v", fetched.Progress)
	}
}

func TestHistoryReturnsTerminalNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		job := testsupport.NewJob(t, store, fmt.Sprintf("hist000%d", i), "item")
		job.Status = jobs.StatusCompleted
		job.Progress = 100
		if err := store.MarkTerminal(ctx, job, time.Now()); err != nil {
			t.Fatalf("MarkTerminal failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	testsupport.NewJob(t, store, "active01", "item")

	history, err := store.History(ctx, 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 terminal rows, got %d", len(history))
	}
	for _, job := range history {
		if !job.Status.IsTerminal() {
			t.Fatalf("non-terminal job in history: %s", job.Status)
		}
	}
	if history[0].ID != "hist0002" {
		t.Fatalf("expected newest first, got %s", history[0].ID)
	}
}

func TestHistoryHonorsLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		job := testsupport.NewJob(t, store, fmt.Sprintf("lim0000%d", i), "item")
		job.Status = jobs.StatusCancelled
		if err := store.MarkTerminal(ctx, job, time.Now()); err != nil {
			t.Fatalf("MarkTerminal failed: %v", err)
		}
	}

	history, err := store.History(ctx, 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(history))
	}
}

func TestMarkInterruptedFailsLiveRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	pending := testsupport.NewJob(t, store, "int00001", "item")
	running := testsupport.NewJob(t, store, "int00002", "item")
	if err := store.MarkRunning(ctx, running.ID, time.Now()); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	done := testsupport.NewJob(t, store, "int00003", "item")
	done.Status = jobs.StatusCompleted
	done.Progress = 100
	if err := store.MarkTerminal(ctx, done, time.Now()); err != nil {
		t.Fatalf("MarkTerminal failed: %v", err)
	}

	count, err := store.MarkInterrupted(ctx)
	if err != nil {
		t.Fatalf("MarkInterrupted failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 interrupted rows, got %d", count)
	}

	for _, id := range []string{pending.ID, running.ID} {
		fetched, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if fetched.Status != jobs.StatusFailed {
			t.Fatalf("expected failed, got %s", fetched.Status)
		}
		if fetched.ErrorMessage != jobs.InterruptedMessage {
			t.Fatalf("unexpected interruption message: %q", fetched.ErrorMessage)
		}
		if fetched.CompletedAt == nil {
			t.Fatal("expected completed_at on interrupted row")
		}
	}

	fetched, err := store.GetByID(ctx, done.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != jobs.StatusCompleted {
		t.Fatalf("completed row should be untouched, got %s", fetched.Status)
	}
}

func TestClearTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i, status := range jobs.TerminalStatuses() {
		job := testsupport.NewJob(t, store, fmt.Sprintf("clr0000%d", i), "item")
		job.Status = status
		if err := store.MarkTerminal(ctx, job, time.Now()); err != nil {
			t.Fatalf("MarkTerminal failed: %v", err)
		}
	}
	survivor := testsupport.NewJob(t, store, "clr-live", "item")

	removed, err := store.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if _, err := store.GetByID(ctx, survivor.ID); err != nil {
		t.Fatalf("pending job should survive clear: %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	total := int64(100)
	started := time.Now()
	job := &jobs.Job{ID: "x", TotalBytes: &total, StartedAt: &started}
	clone := job.Clone()
	*clone.TotalBytes = 999
	if *job.TotalBytes != 100 {
		t.Fatal("clone shares TotalBytes pointer")
	}
}
