package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"archivist/internal/api"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorForStatus(status string) string {
	switch status {
	case "completed":
		return ansiGreen
	case "failed":
		return ansiRed
	case "cancelled":
		return ansiYellow
	case "running":
		return ansiBlue
	default:
		return ""
	}
}

func paintStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	color := colorForStatus(status)
	if color == "" {
		return status
	}
	return color + status + ansiReset
}

func formatBytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

func formatRate(bps float64) string {
	if bps <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bps)) + "/s"
}

func formatProgress(job api.JobView) string {
	if job.TotalBytes != nil && *job.TotalBytes > 0 {
		return fmt.Sprintf("%3.0f%% of %s", job.Progress, formatBytes(*job.TotalBytes))
	}
	return fmt.Sprintf("%3.0f%%", job.Progress)
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func buildJobRows(jobs []api.JobView, colorize bool) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		target := job.Identifier
		if job.FileName != "" {
			target = job.Identifier + "/" + job.FileName
		}
		detail := formatProgress(job)
		if job.Error != "" {
			detail = truncate(job.Error, 48)
		}
		rows = append(rows, []string{
			job.ID,
			truncate(target, 40),
			paintStatus(job.Status, colorize),
			detail,
			formatRate(job.RateBPS),
			formatAge(job.CreatedAt),
		})
	}
	return rows
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// metadataString pulls a display string out of the loosely typed item
// metadata map.
func metadataString(metadata map[string]any, key string) string {
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}
