// Package scheduler owns the job lifecycle: admission under a runtime
// capacity limit, supervised execution in killable worker processes,
// staging finalization, progress monitoring, and restart recovery. One
// scheduler instance exists per daemon.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"archivist/internal/archive"
	"archivist/internal/config"
	"archivist/internal/events"
	"archivist/internal/jobs"
	"archivist/internal/logging"
	"archivist/internal/settings"
	"archivist/internal/worker"
)

// Capacity bounds for concurrent transfers.
const (
	MinCapacity = 1
	MaxCapacity = 10
)

// ContentService is the metadata lookup the scheduler needs for file
// selection, placeholder detection, and expected-size computation.
type ContentService interface {
	Item(ctx context.Context, identifier string) (*archive.Item, error)
}

// SettingsSource supplies the persisted option overlay and capacity.
type SettingsSource interface {
	MaxConcurrent(ctx context.Context) int
	TransferDefaultsOverlay(ctx context.Context) (settings.TransferDefaults, error)
	Set(ctx context.Context, key string, value any) error
}

// Scheduler coordinates all active jobs. All shared maps below are guarded
// by mu; critical sections never perform I/O, and state transitions are
// never applied while holding it.
type Scheduler struct {
	cfg      *config.Config
	store    *jobs.Store
	settings SettingsSource
	content  ContentService
	launcher worker.Launcher
	hub      *events.Hub
	logger   *slog.Logger

	mu        sync.Mutex
	active    map[string]*jobs.Job
	running   map[string]struct{}
	cancelled map[string]struct{}
	units     map[string]worker.Unit
	capacity  int
	accepting bool

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// New wires a scheduler. Initialize must be called before any job is
// accepted.
func New(
	cfg *config.Config,
	store *jobs.Store,
	settingsSource SettingsSource,
	content ContentService,
	launcher worker.Launcher,
	hub *events.Hub,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		settings:  settingsSource,
		content:   content,
		launcher:  launcher,
		hub:       hub,
		logger:    logging.NewComponentLogger(logger, "scheduler"),
		active:    make(map[string]*jobs.Job),
		running:   make(map[string]struct{}),
		cancelled: make(map[string]struct{}),
		units:     make(map[string]worker.Unit),
		capacity:  settings.DefaultMaxConcurrentTransfers,
		baseCtx:   ctx,
		stop:      cancel,
	}
}

// Initialize runs restart recovery and opens the scheduler for new jobs.
func (s *Scheduler) Initialize(ctx context.Context) error {
	if err := s.recover(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.accepting = true
	s.mu.Unlock()
	return nil
}

// Shutdown stops accepting jobs, terminates running workers, and waits for
// job goroutines to drain or the context to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.accepting = false
	units := make([]worker.Unit, 0, len(s.units))
	for _, unit := range s.units {
		units = append(units, unit)
	}
	s.mu.Unlock()

	s.stop()
	grace := s.terminateGrace()
	for _, unit := range units {
		unit.Terminate(grace)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetCapacity adjusts the concurrent transfer limit, clamped to a sane
// range. Jobs already past admission are unaffected. The clamped value is
// returned.
func (s *Scheduler) SetCapacity(n int) int {
	n = clampCapacity(n)
	s.mu.Lock()
	s.capacity = n
	s.mu.Unlock()
	s.logger.Info("transfer capacity updated", logging.Int("capacity", n))
	return n
}

// Capacity reports the current concurrent transfer limit.
func (s *Scheduler) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

func clampCapacity(n int) int {
	if n < MinCapacity {
		return MinCapacity
	}
	if n > MaxCapacity {
		return MaxCapacity
	}
	return n
}

// Get returns a job snapshot, consulting active jobs first and falling
// back to the store for terminal history rows.
func (s *Scheduler) Get(ctx context.Context, id string) (*jobs.Job, error) {
	s.mu.Lock()
	if job, ok := s.active[id]; ok {
		snapshot := job.Clone()
		s.mu.Unlock()
		return snapshot, nil
	}
	s.mu.Unlock()
	return s.store.GetByID(ctx, id)
}

// ListActive returns snapshots of all non-terminal jobs, newest first to
// match history ordering.
func (s *Scheduler) ListActive() []*jobs.Job {
	s.mu.Lock()
	out := make([]*jobs.Job, 0, len(s.active))
	for _, job := range s.active {
		out = append(out, job.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// History lists terminal jobs from the store, newest first.
func (s *Scheduler) History(ctx context.Context, limit int) ([]*jobs.Job, error) {
	return s.store.History(ctx, limit)
}

// ClearHistory removes all terminal rows and reports how many went.
func (s *Scheduler) ClearHistory(ctx context.Context) (int64, error) {
	return s.store.ClearTerminal(ctx)
}

// Subscribe registers a live event stream receiver.
func (s *Scheduler) Subscribe() chan events.Event {
	return s.hub.Subscribe()
}

// Unsubscribe drops a receiver registered with Subscribe.
func (s *Scheduler) Unsubscribe(ch chan events.Event) {
	s.hub.Unsubscribe(ch)
}

// Cancel requests cancellation of a job. Pending jobs transition straight
// to cancelled; running jobs are flagged and their worker is stopped by
// the supervision loop. Unknown or already-terminal jobs return false with
// no state change.
func (s *Scheduler) Cancel(ctx context.Context, id string) bool {
	s.mu.Lock()
	job, ok := s.active[id]
	if !ok || job.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	s.cancelled[id] = struct{}{}
	wasPending := job.Status == jobs.StatusPending
	s.mu.Unlock()

	s.logger.Info("cancellation requested",
		logging.String(logging.FieldJobID, id),
		logging.Bool("pending", wasPending))
	if wasPending {
		s.transition(ctx, job, jobs.StatusCancelled, "")
	}
	return true
}

func (s *Scheduler) isCancelled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cancelled[id]
	return ok
}

func (s *Scheduler) terminateGrace() time.Duration {
	return time.Duration(s.cfg.Workflow.TerminateGraceSeconds) * time.Second
}

// ActiveIDs returns the ids of all non-terminal jobs, for orphaned staging
// sweeps.
func (s *Scheduler) ActiveIDs() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.active))
	for id := range s.active {
		out[id] = struct{}{}
	}
	return out
}
