package logtail_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"archivist/internal/logtail"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailReturnsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archivist.log")
	writeLog(t, path, "first\nsecond\nthird\n")

	var got []string
	emitted, err := logtail.Tail(context.Background(), path, logtail.Options{Lines: 2}, func(line string) {
		got = append(got, line)
	})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !emitted {
		t.Fatal("expected lines to be emitted")
	}
	if len(got) != 2 || got[0] != "second" || got[1] != "third" {
		t.Fatalf("unexpected lines: %v", got)
	}
}

func TestTailMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.log")

	emitted, err := logtail.Tail(context.Background(), path, logtail.Options{Lines: 10}, func(string) {
		t.Fatal("unexpected line")
	})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if emitted {
		t.Fatal("expected no output for missing file")
	}
}

func TestTailFollowPicksUpAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archivist.log")
	writeLog(t, path, "existing\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	linesCh := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		_, err := logtail.Tail(ctx, path, logtail.Options{
			Lines:        1,
			Follow:       true,
			PollInterval: 10 * time.Millisecond,
		}, func(line string) {
			linesCh <- line
		})
		done <- err
	}()

	expect := func(want string) {
		t.Helper()
		select {
		case line := <-linesCh:
			if line != want {
				t.Fatalf("expected %q, got %q", want, line)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	expect("existing")
	appendLog(t, path, "appended\n")
	expect("appended")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Tail: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop on cancel")
	}
}

func TestTailIgnoresPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archivist.log")
	writeLog(t, path, "complete\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	linesCh := make(chan string, 16)
	go func() {
		_, _ = logtail.Tail(ctx, path, logtail.Options{
			Follow:       true,
			PollInterval: 10 * time.Millisecond,
		}, func(line string) {
			linesCh <- line
		})
	}()

	<-linesCh
	appendLog(t, path, "partial")

	select {
	case line := <-linesCh:
		t.Fatalf("unexpected partial line %q", line)
	case <-time.After(100 * time.Millisecond):
	}

	appendLog(t, path, " finished\n")
	select {
	case line := <-linesCh:
		if line != "partial finished" {
			t.Fatalf("expected completed line, got %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completed line")
	}
}
