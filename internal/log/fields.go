package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldEntryID    = "entry_id"
	FieldUserID     = "user_id"
	FieldYearMonth  = "year_month"
	FieldHours      = "hours"
	FieldDeltaHours = "delta_hours"
	FieldTotalHours = "total_hours"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentStore      = "store"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentAggregator = "aggregator"
	ComponentRecalc     = "recalc"
	ComponentAuth       = "auth"
)

// Operations defines standard operation names
const (
	OpCreate      = "create"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpList        = "list"
	OpAggregate   = "aggregate"
	OpRecalculate = "recalculate"
	OpStartup     = "startup"
	OpShutdown    = "shutdown"
)
