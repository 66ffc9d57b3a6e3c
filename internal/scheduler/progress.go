package scheduler

import (
	"context"
	"time"

	"archivist/internal/jobs"
	"archivist/internal/staging"
)

const broadcastByteThreshold = 100 * 1024

// monitorProgress samples the staging tree while the job runs, deriving
// percentage, byte counts, and an instantaneous rate. Updates broadcast
// only when they moved at least one percentage point or 100 KiB, keeping
// subscriber traffic bounded. With no known total the percentage ramps
// toward an indeterminate ceiling and never reaches 100 on its own.
func (s *Scheduler) monitorProgress(ctx context.Context, job *jobs.Job, stagingDir string, totalBytes int64) {
	interval := time.Duration(s.cfg.Workflow.ProgressIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		lastBytes        int64
		lastSample       = time.Now()
		lastSentProgress float64
		lastSentBytes    int64
		sentInitial      bool
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		currentBytes := staging.DirSize(stagingDir)
		now := time.Now()
		elapsed := now.Sub(lastSample).Seconds()

		var rate float64
		if elapsed > 0 && currentBytes > lastBytes {
			rate = float64(currentBytes-lastBytes) / elapsed
		}
		lastBytes = currentBytes
		lastSample = now

		s.mu.Lock()
		if job.Status != jobs.StatusRunning {
			s.mu.Unlock()
			return
		}
		var progress float64
		if totalBytes > 0 {
			progress = float64(currentBytes) / float64(totalBytes) * 100
			if progress > 99 {
				progress = 99
			}
		} else {
			progress = job.Progress + 2
			if progress > 95 {
				progress = 95
			}
		}
		if progress < job.Progress {
			progress = job.Progress
		}
		job.Progress = progress
		job.TransferredBytes = currentBytes
		job.RateBPS = rate
		snapshot := job.Clone()
		s.mu.Unlock()

		notable := progress-lastSentProgress >= 1 ||
			currentBytes-lastSentBytes >= broadcastByteThreshold ||
			!sentInitial
		if notable {
			lastSentProgress = progress
			lastSentBytes = currentBytes
			sentInitial = true
			s.hub.PublishJob(snapshot)
		}
	}
}
