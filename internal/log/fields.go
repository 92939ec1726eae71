package log

// Common field names for structured logging
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
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldUsername    = "username"
	FieldTxID        = "transaction_id"
	FieldTxType      = "transaction_type"
	FieldAmount      = "amount"
	FieldCurrency    = "currency"
	FieldCategory    = "category"
	FieldCategoryID  = "category_id"
	FieldSubName     = "subscription"
	FieldSeeded      = "seeded"
	FieldSheetsRef   = "sheets_ref"
	FieldBatchSize   = "batch_size"
	FieldPendingRows = "pending"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentLedger    = "ledger"
	ComponentResolver  = "category_resolver"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentScheduler = "scheduler"
	ComponentSheets    = "sheets"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpDelete   = "delete"
	OpSeed     = "seed"
	OpLogin    = "login"
	OpLogout   = "logout"
	OpRegister = "register"
	OpAppend   = "append"
	OpSync     = "sync"
	OpPublish  = "publish"
	OpRender   = "render"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// Fields is a small builder for slog key/value pairs.
type Fields map[string]any

// NewFields creates a new Fields instance
func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error message when err is non-nil.
func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithHTTP adds request and response fields for access logs.
func (f Fields) WithHTTP(method, path string, status int, durationMs int64) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = status
	f[FieldDuration] = durationMs
	f[FieldSuccess] = status < 400
	return f
}

// ToSlice converts Fields to a slice for slog
func (f Fields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
