// Package logtail reads and follows the daemon log file. The CLI uses it
// directly so logs remain inspectable when the daemon is down.
package logtail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// DefaultPollInterval is how often a follow checks the file for growth.
const DefaultPollInterval = time.Second

// Options controls tail behavior.
type Options struct {
	// Lines is how many trailing lines to emit initially. Zero emits the
	// whole file.
	Lines int
	// Follow keeps watching the file for new lines until the context is
	// cancelled.
	Follow bool
	// PollInterval overrides the follow poll cadence.
	PollInterval time.Duration
}

// Tail emits log lines through onLine. It returns whether at least one
// line was emitted. A truncated file during follow restarts from the top,
// which covers log rotation.
func Tail(ctx context.Context, path string, opts Options, onLine func(string)) (bool, error) {
	lines, offset, err := readTrailing(path, opts.Lines)
	if err != nil {
		return false, err
	}
	emitted := false
	for _, line := range lines {
		onLine(line)
		emitted = true
	}
	if !opts.Follow {
		return emitted, nil
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return emitted, nil
		case <-ticker.C:
			newLines, next, err := readFrom(path, offset)
			if err != nil {
				if os.IsNotExist(err) {
					offset = 0
					continue
				}
				return emitted, err
			}
			offset = next
			for _, line := range newLines {
				onLine(line)
				emitted = true
			}
		}
	}
}

// readTrailing returns the last n lines of the file and the offset at its
// current end.
func readTrailing(path string, n int) ([]string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	lines := splitLines(string(data))
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, int64(len(data)), nil
}

// readFrom returns complete lines appended after offset and the new offset.
// A file shorter than the offset means rotation; reading restarts from the
// beginning.
func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, offset, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, err
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return nil, offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}

	var lines []string
	consumed := offset
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			lines = append(lines, strings.TrimRight(line, "\n"))
			continue
		}
		// A partial trailing line stays unconsumed until the writer
		// finishes it.
		if err == io.EOF {
			return lines, consumed, nil
		}
		return lines, consumed, err
	}
}

func splitLines(data string) []string {
	if data == "" {
		return nil
	}
	data = strings.TrimRight(data, "\n")
	if data == "" {
		return nil
	}
	return strings.Split(data, "\n")
}
