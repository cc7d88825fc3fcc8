package log

// Field names shared across components so log queries line up.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldBillID      = "bill_id"
	FieldBillName    = "bill_name"
	FieldCategory    = "category"
	FieldDueDate     = "due_date"
	FieldAmountCents = "amount_cents"
	FieldCount       = "count"
	FieldSkipped     = "skipped"
	FieldPeriodIndex = "period_index"
	FieldUserEmail   = "user_email"
	FieldDataVersion = "data_version"
	FieldQueue       = "queue"
	FieldAttempt     = "attempt"
)

// Components defines standard component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentBills     = "bills"
	ComponentState     = "state"
	ComponentStorage   = "storage"
	ComponentCloud     = "cloud"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
	ComponentTransfer  = "transfer"
)

// Operations defines standard operation names.
const (
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpPay        = "pay"
	OpToggle     = "toggle"
	OpExpand     = "expand"
	OpRegenerate = "regenerate"
	OpSnapshot   = "snapshot"
	OpRestore    = "restore"
	OpImport     = "import"
	OpExport     = "export"
	OpSync       = "sync"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)

// LogFields builds structured attributes incrementally.
type LogFields map[string]any

// NewFields creates an empty field set.
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds the component field.
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds the request id field.
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds the client IP field.
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error field when err is non-nil.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds the operation field.
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithBill adds bill identity fields.
func (f LogFields) WithBill(id, name, category string) LogFields {
	f[FieldBillID] = id
	f[FieldBillName] = name
	f[FieldCategory] = category
	return f
}

// WithHTTPRequest adds request fields, skipping empty optional ones.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds response status and timing fields.
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice flattens the fields into slog key-value args.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
