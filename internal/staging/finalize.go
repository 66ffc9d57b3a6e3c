package staging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"archivist/internal/logging"
)

// FinalizeOptions controls how staged files are promoted.
type FinalizeOptions struct {
	// Placeholders holds the relative paths of marker files written before
	// the transfer. Only these are treated as markers; a downloaded file
	// that happens to be empty is still promoted.
	Placeholders map[string]struct{}

	// SkipExisting leaves destination files untouched when a staged file
	// would land on an existing path.
	SkipExisting bool
}

// FinalizeResult reports what a finalize pass did.
type FinalizeResult struct {
	Moved   int
	Skipped int
}

// Finalize promotes downloaded files from a staging directory into the
// destination, preserving relative paths. Tracked placeholder markers and
// symlinks are skipped, as is anything whose relative path would resolve
// outside the destination. Existing destination files are replaced unless
// skip-existing is set. Any error aborts the pass so the caller can fail
// the job rather than report a partial transfer as complete.
func Finalize(stagingDir, destDir string, opts FinalizeOptions, logger *slog.Logger) (FinalizeResult, error) {
	var result FinalizeResult
	if logger == nil {
		logger = logging.NewNop()
	}

	err := filepath.Walk(stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			result.Skipped++
			return nil
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		if _, marker := opts.Placeholders[filepath.ToSlash(rel)]; marker {
			result.Skipped++
			return nil
		}
		target, err := resolveWithin(destDir, rel)
		if err != nil {
			result.Skipped++
			logger.Warn("skipping unsafe staged path",
				logging.String("path", rel),
				logging.Error(err))
			return nil
		}
		if opts.SkipExisting {
			if _, err := os.Stat(target); err == nil {
				result.Skipped++
				return nil
			}
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("prepare destination for %q: %w", rel, err)
		}
		if err := movePath(path, target); err != nil {
			return fmt.Errorf("move %q: %w", rel, err)
		}
		result.Moved++
		return nil
	})
	if err != nil {
		return result, err
	}
	logger.Info("finalized staged files",
		logging.String("destination", destDir),
		logging.Int("moved", result.Moved),
		logging.Int("skipped", result.Skipped))
	return result, nil
}

// movePath renames src onto dst, copying when the rename crosses devices.
// The copy lands on a temporary name first so an interrupted copy never
// leaves a partial file at the final path.
func movePath(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".partial-*")
	if err != nil {
		return err
	}
	tmp := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
