// Package staging manages per-job staging directories. Workers download
// into a staging directory, and completed transfers are promoted into the
// destination with atomic renames so cancelled or failed jobs never leave
// partial files behind.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
)

const rootDirName = ".staging"

// Root returns the staging root under a data directory.
func Root(dataDir string) string {
	return filepath.Join(dataDir, rootDirName)
}

// JobDir returns the staging directory path for one job.
func JobDir(dataDir, jobID string) string {
	return filepath.Join(Root(dataDir), "job-"+jobID)
}

// Create makes the staging directory for a job and returns its path.
func Create(dataDir, jobID string) (string, error) {
	dir := JobDir(dataDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	return dir, nil
}

// WritePlaceholders creates zero-byte markers in the staging directory for
// every relative path that already exists under destDir. Markers make the
// worker skip those files, and the returned set is what Finalize uses to
// tell markers apart from genuinely empty downloads. Keys are
// slash-separated relative paths.
func WritePlaceholders(stagingDir, destDir string, relPaths []string) (map[string]struct{}, error) {
	written := make(map[string]struct{})
	for _, rel := range relPaths {
		target, err := resolveWithin(destDir, rel)
		if err != nil {
			continue
		}
		if _, err := os.Stat(target); err != nil {
			continue
		}
		marker, err := resolveWithin(stagingDir, rel)
		if err != nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(marker), 0o755); err != nil {
			return written, fmt.Errorf("placeholder directory for %q: %w", rel, err)
		}
		handle, err := os.OpenFile(marker, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return written, fmt.Errorf("placeholder for %q: %w", rel, err)
		}
		handle.Close()
		written[filepath.ToSlash(rel)] = struct{}{}
	}
	return written, nil
}

// Cleanup removes a job's staging directory and prunes the staging root
// when it becomes empty.
func Cleanup(dataDir, jobID string) error {
	if err := os.RemoveAll(JobDir(dataDir, jobID)); err != nil {
		return fmt.Errorf("remove staging directory: %w", err)
	}
	// Best effort: fails while other jobs still have staging dirs.
	_ = os.Remove(Root(dataDir))
	return nil
}

// DirSize totals the file sizes under a directory. Unreadable entries are
// skipped so a mid-download scan never fails.
func DirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

// resolveWithin joins rel onto root and rejects paths that escape it.
func resolveWithin(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path %q not allowed", rel)
	}
	joined := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if joined != cleanRoot && !withinDir(cleanRoot, joined) {
		return "", fmt.Errorf("path %q escapes %q", rel, root)
	}
	return joined, nil
}

func withinDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}
