// Package api defines the wire types shared by the daemon's HTTP server
// and the CLI client, plus the client itself.
package api

import (
	"encoding/json"
	"time"

	"archivist/internal/archive"
	"archivist/internal/bookmarks"
	"archivist/internal/events"
	"archivist/internal/jobs"
)

// JobView is the JSON shape of one job snapshot.
type JobView struct {
	ID               string     `json:"id"`
	Kind             string     `json:"kind"`
	Status           string     `json:"status"`
	Identifier       string     `json:"identifier"`
	FileName         string     `json:"file_name,omitempty"`
	DestDir          string     `json:"dest_dir"`
	Progress         float64    `json:"progress"`
	TotalBytes       *int64     `json:"total_bytes,omitempty"`
	TransferredBytes int64      `json:"transferred_bytes"`
	RateBPS          float64    `json:"rate_bps"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// FromJob converts a job snapshot to its wire shape.
func FromJob(job *jobs.Job) JobView {
	return JobView{
		ID:               job.ID,
		Kind:             string(job.Kind),
		Status:           string(job.Status),
		Identifier:       job.Identifier,
		FileName:         job.FileName,
		DestDir:          job.DestDir,
		Progress:         job.Progress,
		TotalBytes:       job.TotalBytes,
		TransferredBytes: job.TransferredBytes,
		RateBPS:          job.RateBPS,
		Error:            job.ErrorMessage,
		CreatedAt:        job.CreatedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
	}
}

// FromJobs converts a slice of snapshots.
func FromJobs(list []*jobs.Job) []JobView {
	out := make([]JobView, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

// CreateJobRequest is the POST /api/jobs body. Option fields are pointers
// so absent keys fall through to persisted and configured defaults.
type CreateJobRequest struct {
	Identifier         string   `json:"identifier"`
	Files              []string `json:"files,omitempty"`
	Glob               string   `json:"glob,omitempty"`
	Format             string   `json:"format,omitempty"`
	DestDir            string   `json:"dest_dir,omitempty"`
	SkipExisting       *bool    `json:"skip_existing,omitempty"`
	VerifyChecksum     *bool    `json:"verify_checksum,omitempty"`
	Retries            *int     `json:"retries,omitempty"`
	TimeoutSeconds     *int     `json:"timeout_seconds,omitempty"`
	Flatten            *bool    `json:"flatten,omitempty"`
	PreserveTimestamps *bool    `json:"preserve_timestamps,omitempty"`
	IncludeDerivatives *bool    `json:"include_derivatives,omitempty"`
	Sources            []string `json:"sources,omitempty"`
	ExcludeSources     []string `json:"exclude_sources,omitempty"`
	ExcludeGlob        string   `json:"exclude_glob,omitempty"`
}

// JobResponse wraps one job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// JobListResponse wraps a list of jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// CancelResponse reports whether a cancel request took effect.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ClearHistoryResponse reports how many terminal rows were removed.
type ClearHistoryResponse struct {
	Removed int64 `json:"removed"`
}

// DaemonStatus is the GET /api/status payload.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Capacity     int            `json:"capacity"`
	ActiveJobs   int            `json:"active_jobs"`
	JobCounts    map[string]int `json:"job_counts"`
	DatabasePath string         `json:"database_path"`
	LockFilePath string         `json:"lock_file_path"`
	DataDir      string         `json:"data_dir"`
}

// SearchResponse wraps one page of archive search results.
type SearchResponse struct {
	Results []archive.SearchResult `json:"results"`
	Total   int64                  `json:"total"`
	Page    int                    `json:"page"`
	Rows    int                    `json:"rows"`
}

// ItemResponse wraps one item metadata record.
type ItemResponse struct {
	Item archive.Item `json:"item"`
}

// SettingsResponse lists persisted settings merged over known keys.
type SettingsResponse struct {
	Settings map[string]json.RawMessage `json:"settings"`
}

// UpdateSettingsRequest carries key/value pairs to persist. Values are
// arbitrary JSON.
type UpdateSettingsRequest struct {
	Settings map[string]json.RawMessage `json:"settings"`
}

// BookmarkRequest is the POST /api/bookmarks body.
type BookmarkRequest struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title,omitempty"`
	MediaType  string `json:"mediatype,omitempty"`
	Note       string `json:"note,omitempty"`
}

// BookmarkListResponse wraps the saved bookmarks.
type BookmarkListResponse struct {
	Bookmarks []bookmarks.Bookmark `json:"bookmarks"`
}

// SearchHistoryResponse lists recent search queries, newest first.
type SearchHistoryResponse struct {
	Queries []string `json:"queries"`
}

// Event is one live stream update, shared by the SSE and websocket
// endpoints.
type Event struct {
	Type string  `json:"type"`
	Job  JobView `json:"job"`
}

// FromEvent converts a broadcast hub event to its wire shape.
func FromEvent(event events.Event) Event {
	return Event{
		Type: string(event.Type),
		Job:  FromJob(event.Job),
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
