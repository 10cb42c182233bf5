package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldSessionID  = "session_id"
	FieldUser       = "user"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldExpenseID  = "expense_id"
	FieldTitle      = "title"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldCount      = "count"
	FieldURL        = "url"
)

// Components
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentGateway = "gateway"
	ComponentTracker = "tracker"
	ComponentSession = "session"
	ComponentAMQP    = "amqp"
	ComponentExport  = "export"
)

// Operations
const (
	OpList     = "list"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpLogin    = "login"
	OpLogout   = "logout"
	OpRender   = "render"
	OpExport   = "export"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error message; nil errors are skipped.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(id, title, amount, category string) LogFields {
	if id != "" {
		f[FieldExpenseID] = id
	}
	f[FieldTitle] = title
	f[FieldAmount] = amount
	f[FieldCategory] = category
	return f
}

func (f LogFields) WithHTTPRequest(method, path, clientIP, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldClientIP] = clientIP
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
