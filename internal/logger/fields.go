package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldSessionID is the studio session the request operates on
	FieldSessionID = "session_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldOperation is the studio operation (suggest, edit, export)
	FieldOperation = "operation"

	// FieldModel is the generative model serving a gateway call
	FieldModel = "model"
)

// Metric fields, attached per entry for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
