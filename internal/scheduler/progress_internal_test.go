package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"archivist/internal/events"
	"archivist/internal/jobs"
	"archivist/internal/logging"
	"archivist/internal/testsupport"
)

// newMonitorScheduler builds the minimal scheduler state monitorProgress
// touches: config, hub, and the registry mutex.
func newMonitorScheduler(t *testing.T) (*Scheduler, *events.Hub) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.ProgressIntervalMS = 10
	hub := events.NewHub()
	t.Cleanup(hub.Close)
	return &Scheduler{cfg: cfg, hub: hub, logger: logging.NewNop()}, hub
}

func (s *Scheduler) progressSnapshot(job *jobs.Job) (float64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return job.Progress, job.TransferredBytes
}

func waitProgress(t *testing.T, what string, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMonitorProgressNeverDecreases(t *testing.T) {
	s, _ := newMonitorScheduler(t)
	stagingDir := t.TempDir()
	staged := filepath.Join(stagingDir, "half.bin")
	testsupport.WriteFile(t, staged, 512)

	job := &jobs.Job{ID: "prog0001", Status: jobs.StatusRunning}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.monitorProgress(ctx, job, stagingDir, 1024)
	}()

	waitProgress(t, "first sample", func() bool {
		progress, _ := s.progressSnapshot(job)
		return progress >= 50
	})

	// Shrinking the staging tree must not move the percentage backwards.
	if err := os.Remove(staged); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitProgress(t, "shrunk sample", func() bool {
		_, bytes := s.progressSnapshot(job)
		return bytes == 0
	})
	progress, _ := s.progressSnapshot(job)
	if progress < 50 {
		t.Fatalf("progress = %v, want clamped at 50", progress)
	}

	cancel()
	<-done
}

func TestMonitorProgressIndeterminateRamp(t *testing.T) {
	s, _ := newMonitorScheduler(t)
	stagingDir := t.TempDir()

	job := &jobs.Job{ID: "prog0002", Status: jobs.StatusRunning}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.monitorProgress(ctx, job, stagingDir, 0)
	}()

	// With no known total each sample adds two points up to the ceiling.
	waitProgress(t, "ramp ceiling", func() bool {
		progress, _ := s.progressSnapshot(job)
		return progress == 95
	})
	time.Sleep(50 * time.Millisecond)
	progress, _ := s.progressSnapshot(job)
	if progress != 95 {
		t.Fatalf("progress = %v, want held at 95", progress)
	}

	cancel()
	<-done
}

func TestMonitorProgressBroadcastThreshold(t *testing.T) {
	s, hub := newMonitorScheduler(t)
	stagingDir := t.TempDir()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// A large total keeps small writes under both broadcast thresholds.
	total := int64(100 * 1024 * 1024)
	job := &jobs.Job{ID: "prog0003", Status: jobs.StatusRunning}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.monitorProgress(ctx, job, stagingDir, total)
	}()

	// The first sample always broadcasts.
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatal("missing initial broadcast")
	}

	// Growth below one point and 100 KiB stays silent.
	testsupport.WriteFile(t, filepath.Join(stagingDir, "tiny.bin"), 16*1024)
	time.Sleep(100 * time.Millisecond)
	select {
	case event := <-ch:
		t.Fatalf("unexpected broadcast at %d bytes", event.Job.TransferredBytes)
	default:
	}

	// Crossing the byte threshold broadcasts again.
	testsupport.WriteFile(t, filepath.Join(stagingDir, "big.bin"), 256*1024)
	waitProgress(t, "threshold broadcast", func() bool {
		select {
		case event := <-ch:
			return event.Job.TransferredBytes >= 256*1024
		default:
			return false
		}
	})

	cancel()
	<-done
}
