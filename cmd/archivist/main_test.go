package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"archivist/internal/config"
	"archivist/internal/daemon"
	"archivist/internal/logging"
)

type cliTestEnv struct {
	daemon     *daemon.Daemon
	address    string
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, base)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("daemon.Close: %v", err)
		}
	})

	return &cliTestEnv{
		daemon:     d,
		address:    d.APIAddr(),
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path, base string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
state_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "state"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, address, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--address", address}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got %q", want, output)
	}
}

func TestCLIStatusAndJobs(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.address, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running")

	out, _, err = runCLI(t, []string{"jobs"}, env.address, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "No active jobs")

	out, _, err = runCLI(t, []string{"history"}, env.address, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No finished jobs")

	_, _, err = runCLI(t, []string{"cancel", "deadbeef"}, env.address, env.configPath)
	if err == nil {
		t.Fatal("expected cancel of unknown job to fail")
	}
	requireContains(t, err.Error(), "not found")

	out, _, err = runCLI(t, []string{"clear"}, env.address, env.configPath)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	requireContains(t, out, "Removed 0 finished jobs")
}

func TestCLISettings(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"settings", "set", "max_concurrent_transfers", "5"}, env.address, env.configPath)
	if err != nil {
		t.Fatalf("settings set: %v", err)
	}
	requireContains(t, out, "max_concurrent_transfers = 5")

	out, _, err = runCLI(t, []string{"settings", "list"}, env.address, env.configPath)
	if err != nil {
		t.Fatalf("settings list: %v", err)
	}
	requireContains(t, out, "max_concurrent_transfers")
	requireContains(t, out, "5")

	_, _, err = runCLI(t, []string{"settings", "set", "bogus_key", "1"}, env.address, env.configPath)
	if err == nil {
		t.Fatal("expected unknown setting key to fail")
	}
}

func TestCLIBookmarks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"bookmarks", "add", "example-item", "--title", "Example"}, env.address, env.configPath)
	if err != nil {
		t.Fatalf("bookmarks add: %v", err)
	}
	requireContains(t, out, "Bookmarked example-item")

	out, _, err = runCLI(t, []string{"bookmarks", "list"}, env.address, env.configPath)
	if err != nil {
		t.Fatalf("bookmarks list: %v", err)
	}
	requireContains(t, out, "example-item")
	requireContains(t, out, "Example")

	out, _, err = runCLI(t, []string{"bookmarks", "remove", "example-item"}, env.address, env.configPath)
	if err != nil {
		t.Fatalf("bookmarks remove: %v", err)
	}
	requireContains(t, out, "Removed bookmark example-item")

	out, _, err = runCLI(t, []string{"bookmarks", "list"}, env.address, env.configPath)
	if err != nil {
		t.Fatalf("bookmarks list after remove: %v", err)
	}
	requireContains(t, out, "No bookmarks")
}
