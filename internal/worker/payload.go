// Package worker runs file transfers in a separate OS process so a stuck
// or cancelled download can be terminated without destabilizing the
// daemon. The daemon re-executes its own binary with a hidden subcommand;
// the payload goes in on stdin and the result comes back on stdout.
package worker

import (
	"archivist/internal/archive"
	"archivist/internal/config"
)

// Payload is the full job description handed to a worker process. The
// daemon normally selects files up front and fills Files; when its
// metadata lookup failed, Files is empty and the worker resolves Selection
// against the item listing itself.
type Payload struct {
	JobID      string               `json:"job_id"`
	Identifier string               `json:"identifier"`
	Files      []archive.ItemFile   `json:"files,omitempty"`
	Selection  archive.Selection    `json:"selection"`
	DestDir    string               `json:"dest_dir"`
	Options    archive.FetchOptions `json:"options"`
	Remote     config.Remote        `json:"remote"`
}

// Result is the worker's final report.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
