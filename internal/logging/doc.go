// Package logging builds the slog loggers used across Archivist and
// standardizes structured field names.
//
// It supplies typed attribute helpers, console and JSON handler
// construction from config, component loggers, and a no-op logger for
// tests. Lifecycle events carry an event_type field so log consumers can
// filter transitions, admissions, and failures without parsing messages.
package logging
