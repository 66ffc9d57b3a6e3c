package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with exactly size bytes, filling it with a
// pattern derived from the file name so distinct fixtures have distinct
// content. Parent directories are created; size zero writes an empty
// file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size < 0 {
		t.Fatalf("negative size %d for %s", size, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	pattern := []byte(filepath.Base(path) + "\n")
	content := bytes.Repeat(pattern, int(size)/len(pattern)+1)[:size]
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
