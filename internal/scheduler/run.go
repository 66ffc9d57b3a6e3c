package scheduler

import (
	"context"
	"fmt"
	"path"
	"time"

	"archivist/internal/archive"
	"archivist/internal/jobs"
	"archivist/internal/logging"
	"archivist/internal/staging"
	"archivist/internal/worker"
)

// run owns one job from admission to terminal state. Every error inside is
// converted into a failed transition; nothing propagates out of the
// goroutine.
func (s *Scheduler) run(job *jobs.Job, selection archive.Selection, options jobs.Options) {
	defer s.wg.Done()
	defer s.release(job.ID)

	if !s.awaitAdmission(job) {
		return
	}
	s.transition(context.Background(), job, jobs.StatusRunning, "")

	// A cancellation may have won the race and applied a terminal state
	// before the running transition; in that case nothing was started.
	s.mu.Lock()
	admitted := job.Status == jobs.StatusRunning
	s.mu.Unlock()
	if !admitted {
		return
	}

	s.execute(job, selection, options)
}

// awaitAdmission polls until capacity frees up, a cancellation arrives, or
// the scheduler shuts down. Admission itself is a single short critical
// section so two late arrivals cannot both slip past a full capacity
// check. It reports whether the job was admitted.
func (s *Scheduler) awaitAdmission(job *jobs.Job) bool {
	interval := time.Duration(s.cfg.Workflow.AdmissionPollMS) * time.Millisecond
	for {
		s.mu.Lock()
		if _, cancelled := s.cancelled[job.ID]; cancelled {
			s.mu.Unlock()
			return false
		}
		if len(s.running) < s.capacity {
			s.running[job.ID] = struct{}{}
			s.mu.Unlock()
			return true
		}
		s.mu.Unlock()

		select {
		case <-s.baseCtx.Done():
			s.transition(context.Background(), job, jobs.StatusFailed, "daemon shutting down")
			return false
		case <-time.After(interval):
		}
	}
}

// execute performs the admitted job: staging setup, worker launch,
// supervision, and finalization. The staging directory is removed
// unconditionally once it was created, however the job ends.
func (s *Scheduler) execute(job *jobs.Job, selection archive.Selection, options jobs.Options) {
	ctx := context.Background()
	logger := s.logger.With(logging.String(logging.FieldJobID, job.ID))

	selected, totalBytes := s.prepareSelection(job, selection, options)

	stagingDir, err := staging.Create(s.cfg.Paths.DataDir, job.ID)
	if err != nil {
		s.transition(ctx, job, jobs.StatusFailed, err.Error())
		return
	}
	defer func() {
		if err := staging.Cleanup(s.cfg.Paths.DataDir, job.ID); err != nil {
			logger.Warn("staging cleanup failed", logging.Error(err))
		}
	}()

	var placeholders map[string]struct{}
	if options.SkipExisting && len(selected) > 0 {
		relPaths := make([]string, 0, len(selected))
		for _, f := range selected {
			relPaths = append(relPaths, relPathFor(job.Identifier, f.Name, options.Flatten))
		}
		written, err := staging.WritePlaceholders(stagingDir, job.DestDir, relPaths)
		if err != nil {
			logger.Warn("placeholder setup failed", logging.Error(err))
		} else if len(written) > 0 {
			logger.Debug("placeholders written", logging.Int("count", len(written)))
		}
		placeholders = written
	}

	if s.isCancelled(job.ID) {
		s.transition(ctx, job, jobs.StatusCancelled, "")
		return
	}

	unit, err := s.launcher.Launch(s.baseCtx, worker.Payload{
		JobID:      job.ID,
		Identifier: job.Identifier,
		Files:      selected,
		Selection:  selection,
		DestDir:    stagingDir,
		Options: archive.FetchOptions{
			SkipExisting:       options.SkipExisting,
			VerifyChecksum:     options.VerifyChecksum,
			Retries:            options.Retries,
			TimeoutSeconds:     options.TimeoutSeconds,
			Flatten:            options.Flatten,
			PreserveTimestamps: options.PreserveTimestamps,
		},
		Remote: s.cfg.Remote,
	})
	if err != nil {
		s.transition(ctx, job, jobs.StatusFailed, fmt.Sprintf("start worker: %v", err))
		return
	}
	s.mu.Lock()
	s.units[job.ID] = unit
	s.mu.Unlock()

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		s.monitorProgress(monitorCtx, job, stagingDir, totalBytes)
	}()

	result, cancelled := s.supervise(job, unit)
	stopMonitor()
	<-monitorDone

	switch {
	case cancelled:
		s.transition(ctx, job, jobs.StatusCancelled, "")
	case result.Success:
		opts := staging.FinalizeOptions{Placeholders: placeholders, SkipExisting: options.SkipExisting}
		if _, err := staging.Finalize(stagingDir, job.DestDir, opts, logger); err != nil {
			s.transition(ctx, job, jobs.StatusFailed, fmt.Sprintf("finalize: %v", err))
			return
		}
		s.transition(ctx, job, jobs.StatusCompleted, "")
	default:
		message := result.Error
		if message == "" {
			message = "transfer failed"
		}
		s.transition(ctx, job, jobs.StatusFailed, message)
	}
}

// prepareSelection resolves the item listing for placeholders and the
// expected total size. Lookup failure is tolerated: the worker re-resolves
// the selection itself and progress degrades to an indeterminate ramp.
func (s *Scheduler) prepareSelection(job *jobs.Job, selection archive.Selection, options jobs.Options) ([]archive.ItemFile, int64) {
	lookupCtx, cancel := context.WithTimeout(s.baseCtx, time.Duration(s.cfg.Remote.RequestTimeout)*time.Second)
	defer cancel()

	item, err := s.content.Item(lookupCtx, job.Identifier)
	if err != nil {
		s.logger.Warn("item lookup failed, proceeding without size estimate",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldIdentifier, job.Identifier),
			logging.Error(err))
		return nil, 0
	}
	selected, err := archive.SelectFiles(item.Files, selection)
	if err != nil {
		s.logger.Warn("file selection failed, deferring to worker",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
		return nil, 0
	}

	total, _ := archive.TotalSize(selected)
	if total > 0 {
		s.mu.Lock()
		job.TotalBytes = &total
		s.mu.Unlock()
	}
	return selected, total
}

// supervise waits for the worker to exit, polling cancellation at a fixed
// interval. A cancellation request terminates the worker with bounded
// waits, so supervision never hangs.
func (s *Scheduler) supervise(job *jobs.Job, unit worker.Unit) (worker.Result, bool) {
	interval := time.Duration(s.cfg.Workflow.SupervisionPollMS) * time.Millisecond
	for {
		select {
		case result := <-unit.Done():
			return result, s.isCancelled(job.ID)
		case <-time.After(interval):
			if s.isCancelled(job.ID) {
				unit.Terminate(s.terminateGrace())
				select {
				case result := <-unit.Done():
					return result, true
				case <-time.After(s.terminateGrace()):
					return worker.Result{Error: "worker did not exit"}, true
				}
			}
		}
	}
}

// release clears a finished job's bookkeeping from the shared maps.
func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.running, id)
	delete(s.cancelled, id)
	delete(s.units, id)
	s.mu.Unlock()
}

// relPathFor mirrors the layout the worker writes into staging.
func relPathFor(identifier, name string, flatten bool) string {
	if flatten {
		return name
	}
	return path.Join(identifier, name)
}
