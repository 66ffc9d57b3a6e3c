package jobs

import "time"

// Status represents the lifecycle of a transfer job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Kind distinguishes job varieties. Only transfers exist today; the column
// is kept so history rows stay self-describing if other kinds appear.
type Kind string

const KindTransfer Kind = "transfer"

// InterruptedMessage is the fixed error recorded for jobs found mid-flight
// after a restart.
const InterruptedMessage = "interrupted by restart"

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// TerminalStatuses returns the terminal status set in a stable order.
func TerminalStatuses() []Status {
	return []Status{StatusCompleted, StatusFailed, StatusCancelled}
}

// Options is the per-job transfer option snapshot, captured at creation
// and never mutated. It is persisted as an opaque JSON blob alongside the
// row and never surfaced back to API callers.
type Options struct {
	SkipExisting       bool     `json:"skip_existing"`
	VerifyChecksum     bool     `json:"verify_checksum"`
	Retries            int      `json:"retries"`
	TimeoutSeconds     int      `json:"timeout_seconds"`
	Flatten            bool     `json:"flatten"`
	PreserveTimestamps bool     `json:"preserve_timestamps"`
	Sources            []string `json:"sources,omitempty"`
	ExcludeSources     []string `json:"exclude_sources,omitempty"`
	IncludeDerivatives bool     `json:"include_derivatives"`
	ExcludeGlob        string   `json:"exclude_glob,omitempty"`
}

// Job represents one transfer request and its tracked lifecycle.
type Job struct {
	ID               string
	Kind             Kind
	Status           Status
	Identifier       string
	FileName         string
	DestDir          string
	Progress         float64
	TotalBytes       *int64
	TransferredBytes int64
	RateBPS          float64
	ErrorMessage     string
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// Clone returns an independent copy of the job, suitable for handing to
// subscribers or API responses while the original keeps mutating.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	copied := *j
	if j.TotalBytes != nil {
		v := *j.TotalBytes
		copied.TotalBytes = &v
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		copied.StartedAt = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		copied.CompletedAt = &v
	}
	return &copied
}
