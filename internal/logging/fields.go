package logging

// Standardized structured-logging keys shared across components.
const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldPath is the filesystem path the record concerns.
	FieldPath = "path"
	// FieldTag is the storage-backend tag name involved in an operation.
	FieldTag = "tag"
	// FieldObjective is the placement objective name involved in an operation.
	FieldObjective = "objective"
	// FieldCollection is the downstream ingestion collection name.
	FieldCollection = "collection"
	// FieldJobName is the cluster job name for an ingestion submission.
	FieldJobName = "job_name"
	// FieldEventType categorizes a record for operators scanning logs.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next diagnostic step after a failure.
	FieldErrorHint = "error_hint"
)
