package log

// Canonical field name constants for structured logging.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"

	// API fields
	FieldMethod  = "method"
	FieldPath    = "path"
	FieldStatus  = "status"
	FieldAttempt = "attempt"
	FieldBaseURL = "base_url"

	// Domain fields
	FieldProjectID     = "project_id"
	FieldWorkPackageID = "work_package_id"

	// UI fields
	FieldScreen = "screen"
)
