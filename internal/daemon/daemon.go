// Package daemon ties the pieces together: single-instance locking,
// restart recovery, the HTTP API server, and scheduler lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"archivist/internal/archive"
	"archivist/internal/bookmarks"
	"archivist/internal/config"
	"archivist/internal/events"
	"archivist/internal/jobs"
	"archivist/internal/logging"
	"archivist/internal/scheduler"
	"archivist/internal/settings"
	"archivist/internal/staging"
	"archivist/internal/worker"
)

// Daemon owns the long-running services behind the HTTP API.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *jobs.Store
	settings  *settings.Store
	bookmarks *bookmarks.Store
	content   *archive.Client
	hub       *events.Hub
	sched     *scheduler.Scheduler
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status is the daemon's runtime summary.
type Status struct {
	Running      bool
	PID          int
	Capacity     int
	ActiveJobs   int
	JobCounts    map[jobs.Status]int
	DatabasePath string
	LockFilePath string
	DataDir      string
}

// New constructs the daemon and its dependencies. Start must be called to
// begin serving.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	settingsStore := settings.NewStore(store.DB())
	content := archive.NewClient(cfg, logger)
	hub := events.NewHub()
	launcher := &worker.ProcessLauncher{Binary: cfg.Transfers.WorkerBinary, Logger: logger}
	sched := scheduler.New(cfg, store, settingsStore, content, launcher, hub, logger)

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		settings:  settingsStore,
		bookmarks: bookmarks.NewStore(store.DB()),
		content:   content,
		hub:       hub,
		sched:     sched,
		lockPath:  cfg.LockFilePath(),
		lock:      flock.New(cfg.LockFilePath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the single-instance lock, runs recovery, and brings up
// the API server. Recovery completes before any request can create jobs.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another archivist daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.sweepStaging()

	if err := d.sched.Initialize(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("initialize scheduler: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()))
	return nil
}

// Stop shuts down the API, drains the scheduler, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := d.sched.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("scheduler shutdown incomplete", logging.Error(err))
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.hub.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Scheduler exposes the job orchestration core.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	return d.sched
}

// APIAddr returns the address the API server is bound to. Useful when the
// configured bind requested an ephemeral port.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status reports runtime information for the status endpoint.
func (d *Daemon) Status(ctx context.Context) Status {
	counts, err := d.store.CountByStatus(ctx)
	if err != nil {
		d.logger.Warn("count jobs failed", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Capacity:     d.sched.Capacity(),
		ActiveJobs:   len(d.sched.ListActive()),
		JobCounts:    counts,
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		DataDir:      d.cfg.Paths.DataDir,
	}
}

// sweepStaging reclaims staging directories left by earlier runs. Runs
// before recovery admits anything, so every directory present is either
// stale or orphaned.
func (d *Daemon) sweepStaging() {
	maxAge := time.Duration(d.cfg.Workflow.StaleStagingHours) * time.Hour
	result := staging.CleanStale(d.cfg.Paths.DataDir, maxAge, d.logger)
	orphaned := staging.CleanOrphaned(d.cfg.Paths.DataDir, d.sched.ActiveIDs(), d.logger)
	removed := len(result.Removed) + len(orphaned.Removed)
	if removed > 0 {
		d.logger.Info("staging swept", logging.Int("removed", removed))
	}
}
