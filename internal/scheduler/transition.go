package scheduler

import (
	"context"
	"time"

	"archivist/internal/jobs"
	"archivist/internal/logging"
)

// transition applies one state machine step. Calling it with the job's
// current status, or on an already-terminal job, is a silent no-op so
// racing callers cannot double-apply a transition. Callers must not hold
// s.mu: terminal eviction acquires it internally.
func (s *Scheduler) transition(ctx context.Context, job *jobs.Job, status jobs.Status, errorMessage string) {
	now := time.Now().UTC()

	s.mu.Lock()
	if job.Status == status || job.Status.IsTerminal() {
		s.mu.Unlock()
		return
	}
	job.Status = status
	switch {
	case status == jobs.StatusRunning:
		job.StartedAt = &now
	case status.IsTerminal():
		job.CompletedAt = &now
		job.ErrorMessage = errorMessage
		if status == jobs.StatusCompleted {
			job.Progress = 100
			if job.TotalBytes != nil {
				job.TransferredBytes = *job.TotalBytes
			}
		}
	}
	snapshot := job.Clone()
	s.mu.Unlock()

	var err error
	if status == jobs.StatusRunning {
		err = s.store.MarkRunning(ctx, job.ID, now)
	} else {
		err = s.store.MarkTerminal(ctx, snapshot, now)
	}
	if err != nil {
		s.logger.Error("job state write failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("status", string(status)),
			logging.Error(err))
	}

	if status.IsTerminal() {
		s.mu.Lock()
		delete(s.active, job.ID)
		s.mu.Unlock()
	}

	s.logger.Info("job transitioned",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldIdentifier, job.Identifier),
		logging.String("status", string(status)))
	s.hub.PublishJob(snapshot)
}
