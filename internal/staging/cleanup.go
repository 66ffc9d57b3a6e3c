package staging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"archivist/internal/logging"
)

// CleanResult lists what a cleanup sweep removed and what it could not.
type CleanResult struct {
	Removed []string
	Errors  []CleanError
}

// CleanError pairs a directory path with its removal error.
type CleanError struct {
	Path  string
	Error error
}

// CleanStale removes staging job directories older than maxAge. It is run
// at daemon startup to reclaim space left by crashed transfers.
func CleanStale(dataDir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	if logger == nil {
		logger = logging.NewNop()
	}
	var result CleanResult

	root := Root(dataDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanError{Path: root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanError{Path: path, Error: err})
			logger.Warn("failed to remove stale staging directory",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check data_dir permissions"))
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed stale staging directory",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())))
	}
	return result
}

// CleanOrphaned removes job staging directories whose job is no longer
// active. Directories that do not follow the job naming scheme are left
// for the stale sweep.
func CleanOrphaned(dataDir string, activeJobIDs map[string]struct{}, logger *slog.Logger) CleanResult {
	if logger == nil {
		logger = logging.NewNop()
	}
	var result CleanResult

	root := Root(dataDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanError{Path: root, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		jobID, ok := strings.CutPrefix(entry.Name(), "job-")
		if !ok {
			continue
		}
		if _, active := activeJobIDs[jobID]; active {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanError{Path: path, Error: err})
			logger.Warn("failed to remove orphaned staging directory",
				logging.String("path", path),
				logging.Error(err))
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed orphaned staging directory",
			logging.String("path", path),
			logging.String(logging.FieldJobID, jobID))
	}
	return result
}
