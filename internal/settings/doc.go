// Package settings persists runtime-adjustable settings as JSON-encoded
// key/value rows, layered over built-in defaults.
//
// The transfer-related subset feeds the per-job options snapshot at
// creation time (request overrides > persisted settings > built-in
// defaults); max_concurrent_transfers feeds the scheduler's admission
// capacity and is reloaded during restart recovery. Search history keeps
// the last queries for UI convenience.
package settings
