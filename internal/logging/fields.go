package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldIdentifier is the standardized structured logging key for remote content identifiers.
	FieldIdentifier = "identifier"
	// FieldEventType tags lifecycle events so log consumers can filter without parsing messages.
	FieldEventType = "event_type"
	// FieldErrorHint carries a short operator-facing remediation hint.
	FieldErrorHint = "error_hint"
)
