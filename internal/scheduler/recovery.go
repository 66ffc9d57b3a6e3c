package scheduler

import (
	"context"
	"fmt"

	"archivist/internal/logging"
)

// recover reconciles the store with a fresh process: rows still marked
// pending or running can only be leftovers from an abnormal exit, so they
// are failed in one bulk update. It also reloads the persisted admission
// capacity so the limit survives restarts.
func (s *Scheduler) recover(ctx context.Context) error {
	count, err := s.store.MarkInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if count > 0 {
		s.logger.Info("failed interrupted jobs from previous run",
			logging.Int64("count", count))
	}

	capacity := clampCapacity(s.settings.MaxConcurrent(ctx))
	s.mu.Lock()
	s.capacity = capacity
	s.mu.Unlock()
	s.logger.Info("scheduler recovered",
		logging.Int("capacity", capacity))
	return nil
}
