package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"archivist/internal/logging"
)

// Unit is a handle to one running worker.
type Unit interface {
	// Done yields exactly one Result when the worker exits.
	Done() <-chan Result
	// Alive reports whether the worker is still running.
	Alive() bool
	// Terminate asks the worker to stop, escalating to a kill after the
	// grace period. It blocks until the worker is gone or a second grace
	// period elapses.
	Terminate(grace time.Duration)
}

// Launcher starts workers. The process implementation re-executes the
// daemon binary; tests substitute a fake.
type Launcher interface {
	Launch(ctx context.Context, payload Payload) (Unit, error)
}

// ProcessLauncher starts worker processes in their own process group so
// termination signals reach the whole subprocess tree.
type ProcessLauncher struct {
	// Binary is the executable to re-run. Empty means the current binary.
	Binary string
	Logger *slog.Logger
}

// Launch starts one worker process and feeds it the payload on stdin.
func (l *ProcessLauncher) Launch(ctx context.Context, payload Payload) (Unit, error) {
	binary := l.Binary
	if binary == "" {
		path, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve worker binary: %w", err)
		}
		binary = path
	}
	logger := l.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldJobID, payload.JobID))

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode worker payload: %w", err)
	}

	cmd := exec.Command(binary, Subcommand)
	cmd.Stdin = bytes.NewReader(encoded)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	logger.Debug("worker started", logging.Int("pid", cmd.Process.Pid))

	unit := &processUnit{
		cmd:    cmd,
		stdout: &stdout,
		done:   make(chan Result, 1),
		exited: make(chan struct{}),
		logger: logger,
	}
	go unit.wait()
	return unit, nil
}

type processUnit struct {
	cmd    *exec.Cmd
	stdout *bytes.Buffer
	done   chan Result
	exited chan struct{}
	logger *slog.Logger

	mu       sync.Mutex
	finished bool
}

func (u *processUnit) wait() {
	err := u.cmd.Wait()

	u.mu.Lock()
	u.finished = true
	u.mu.Unlock()
	close(u.exited)

	result := parseResult(u.stdout.Bytes())
	if !result.Success && result.Error == "" {
		if err != nil {
			result.Error = fmt.Sprintf("worker exited: %v", err)
		} else {
			result.Error = "worker exited without reporting a result"
		}
	}
	u.done <- result
}

// parseResult decodes the last JSON line of the worker's stdout. Anything
// unparseable yields a failure result so the job never hangs on a garbled
// worker.
func parseResult(output []byte) Result {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var result Result
		if err := json.Unmarshal([]byte(line), &result); err == nil {
			return result
		}
	}
	return Result{}
}

func (u *processUnit) Done() <-chan Result {
	return u.done
}

func (u *processUnit) Alive() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return !u.finished
}

func (u *processUnit) Terminate(grace time.Duration) {
	if !u.Alive() {
		return
	}
	pgid := u.cmd.Process.Pid

	u.logger.Debug("terminating worker", logging.Int("pid", pgid))
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		u.logger.Warn("terminate signal failed", logging.Error(err))
	}
	if u.awaitExit(grace) {
		return
	}

	u.logger.Warn("worker ignored termination, killing", logging.Int("pid", pgid))
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		u.logger.Warn("kill signal failed", logging.Error(err))
	}
	u.awaitExit(grace)
}

func (u *processUnit) awaitExit(grace time.Duration) bool {
	select {
	case <-u.exited:
		return true
	case <-time.After(grace):
		return false
	}
}
