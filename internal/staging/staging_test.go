package staging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"archivist/internal/staging"
	"archivist/internal/testsupport"
)

func TestCreateAndCleanup(t *testing.T) {
	dataDir := t.TempDir()

	dir, err := staging.Create(dataDir, "abc12345")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dir != filepath.Join(dataDir, ".staging", "job-abc12345") {
		t.Fatalf("dir = %q", dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("stat: %v", err)
	}

	if err := staging.Cleanup(dataDir, "abc12345"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("job dir should be gone: %v", err)
	}
	// Root is pruned once the last job dir is removed.
	if _, err := os.Stat(staging.Root(dataDir)); !os.IsNotExist(err) {
		t.Fatalf("staging root should be pruned: %v", err)
	}
}

func TestCleanupKeepsRootWithOtherJobs(t *testing.T) {
	dataDir := t.TempDir()
	if _, err := staging.Create(dataDir, "job1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := staging.Create(dataDir, "job2"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := staging.Cleanup(dataDir, "job1"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(staging.JobDir(dataDir, "job2")); err != nil {
		t.Fatalf("other job dir should survive: %v", err)
	}
}

func TestWritePlaceholders(t *testing.T) {
	dataDir := t.TempDir()
	destDir := t.TempDir()
	stagingDir, err := staging.Create(dataDir, "abc12345")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	testsupport.WriteFile(t, filepath.Join(destDir, "item", "existing.bin"), 64)

	written, err := staging.WritePlaceholders(stagingDir, destDir, []string{
		"item/existing.bin",
		"item/missing.bin",
		"../escape.bin",
	})
	if err != nil {
		t.Fatalf("placeholders: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("written = %v, want one entry", written)
	}
	if _, ok := written["item/existing.bin"]; !ok {
		t.Fatalf("written = %v, want item/existing.bin tracked", written)
	}

	info, err := os.Stat(filepath.Join(stagingDir, "item", "existing.bin"))
	if err != nil {
		t.Fatalf("stat marker: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("marker size = %d, want 0", info.Size())
	}
	if _, err := os.Stat(filepath.Join(stagingDir, "item", "missing.bin")); !os.IsNotExist(err) {
		t.Fatal("no marker expected for missing destination file")
	}
}

func TestFinalizeMovesAndSkips(t *testing.T) {
	dataDir := t.TempDir()
	destDir := t.TempDir()
	stagingDir, err := staging.Create(dataDir, "abc12345")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	testsupport.WriteFile(t, filepath.Join(stagingDir, "item", "video.mp4"), 128)
	if err := os.WriteFile(filepath.Join(stagingDir, "item", "marker.bin"), nil, 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if err := os.Symlink("/etc/hosts", filepath.Join(stagingDir, "item", "link")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}

	// Existing destination content for the marker path must survive.
	testsupport.WriteFile(t, filepath.Join(destDir, "item", "marker.bin"), 64)

	opts := staging.FinalizeOptions{Placeholders: map[string]struct{}{"item/marker.bin": {}}}
	result, err := staging.Finalize(stagingDir, destDir, opts, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Moved != 1 {
		t.Fatalf("moved = %d, want 1", result.Moved)
	}
	if result.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", result.Skipped)
	}

	if _, err := os.Stat(filepath.Join(destDir, "item", "video.mp4")); err != nil {
		t.Fatalf("moved file missing: %v", err)
	}
	info, err := os.Stat(filepath.Join(destDir, "item", "marker.bin"))
	if err != nil {
		t.Fatalf("existing file missing: %v", err)
	}
	if info.Size() != 64 {
		t.Fatalf("existing file size = %d, want untouched 64", info.Size())
	}
	if _, err := os.Stat(filepath.Join(destDir, "item", "link")); !os.IsNotExist(err) {
		t.Fatal("symlink should not be promoted")
	}
}

func TestFinalizeReplacesExistingFile(t *testing.T) {
	dataDir := t.TempDir()
	destDir := t.TempDir()
	stagingDir, err := staging.Create(dataDir, "abc12345")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	testsupport.WriteFile(t, filepath.Join(stagingDir, "report.txt"), 100)
	testsupport.WriteFile(t, filepath.Join(destDir, "report.txt"), 10)

	if _, err := staging.Finalize(stagingDir, destDir, staging.FinalizeOptions{}, nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	info, err := os.Stat(filepath.Join(destDir, "report.txt"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 100 {
		t.Fatalf("size = %d, want replacement", info.Size())
	}
}

func TestFinalizePromotesEmptyDownload(t *testing.T) {
	dataDir := t.TempDir()
	destDir := t.TempDir()
	stagingDir, err := staging.Create(dataDir, "abc12345")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A remote file can legitimately be empty. Without a tracked marker it
	// must reach the destination like any other download.
	testsupport.WriteFile(t, filepath.Join(stagingDir, "item", "data.bin"), 128)
	if err := os.WriteFile(filepath.Join(stagingDir, "item", "empty.txt"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := staging.Finalize(stagingDir, destDir, staging.FinalizeOptions{}, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Moved != 2 {
		t.Fatalf("moved = %d, want 2", result.Moved)
	}
	info, err := os.Stat(filepath.Join(destDir, "item", "empty.txt"))
	if err != nil {
		t.Fatalf("empty file missing from destination: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("size = %d, want 0", info.Size())
	}
}

func TestFinalizeSkipExisting(t *testing.T) {
	dataDir := t.TempDir()
	destDir := t.TempDir()
	stagingDir, err := staging.Create(dataDir, "abc12345")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	testsupport.WriteFile(t, filepath.Join(stagingDir, "report.txt"), 100)
	testsupport.WriteFile(t, filepath.Join(stagingDir, "fresh.txt"), 30)
	testsupport.WriteFile(t, filepath.Join(destDir, "report.txt"), 10)

	opts := staging.FinalizeOptions{SkipExisting: true}
	result, err := staging.Finalize(stagingDir, destDir, opts, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Moved != 1 || result.Skipped != 1 {
		t.Fatalf("moved = %d skipped = %d, want 1 and 1", result.Moved, result.Skipped)
	}

	info, err := os.Stat(filepath.Join(destDir, "report.txt"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 10 {
		t.Fatalf("size = %d, want untouched 10", info.Size())
	}
	if _, err := os.Stat(filepath.Join(destDir, "fresh.txt")); err != nil {
		t.Fatalf("new file missing: %v", err)
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "a.bin"), 100)
	testsupport.WriteFile(t, filepath.Join(dir, "sub", "b.bin"), 50)

	if got := staging.DirSize(dir); got != 150 {
		t.Fatalf("size = %d, want 150", got)
	}
	if got := staging.DirSize(filepath.Join(dir, "missing")); got != 0 {
		t.Fatalf("missing dir size = %d, want 0", got)
	}
}

func TestCleanStale(t *testing.T) {
	dataDir := t.TempDir()
	oldDir, err := staging.Create(dataDir, "old00000")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	freshDir, err := staging.Create(dataDir, "fresh000")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := staging.CleanStale(dataDir, 24*time.Hour, nil)
	if len(result.Errors) != 0 {
		t.Fatalf("errors: %v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("removed = %v", result.Removed)
	}
	if _, err := os.Stat(freshDir); err != nil {
		t.Fatalf("fresh dir should survive: %v", err)
	}
}

func TestCleanOrphaned(t *testing.T) {
	dataDir := t.TempDir()
	activeDir, err := staging.Create(dataDir, "active00")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	orphanDir, err := staging.Create(dataDir, "orphan00")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	otherDir := filepath.Join(staging.Root(dataDir), "scratch")
	if err := os.MkdirAll(otherDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	result := staging.CleanOrphaned(dataDir, map[string]struct{}{"active00": {}}, nil)
	if len(result.Removed) != 1 || result.Removed[0] != orphanDir {
		t.Fatalf("removed = %v", result.Removed)
	}
	if _, err := os.Stat(activeDir); err != nil {
		t.Fatalf("active dir should survive: %v", err)
	}
	if _, err := os.Stat(otherDir); err != nil {
		t.Fatalf("non-job dir should survive: %v", err)
	}
}
