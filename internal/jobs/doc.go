// Package jobs persists transfer jobs in SQLite and defines their
// lifecycle model.
//
// The Store is the durable source of truth for job history: one row per
// job, written before a job is admitted anywhere else, updated by
// single-statement status transitions, and retained after completion
// until history is explicitly cleared. The in-memory registry of active
// jobs lives in the scheduler; this package only knows rows.
//
// Treat this package as the single source of truth for job persistence
// semantics; schema changes get a new file under migrations/.
package jobs
