package log

// Common field names for structured logging.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldCallID      = "call_id"
	FieldStage       = "stage"
	FieldOperation   = "operation"
	FieldBackend     = "backend"
	FieldAgentID     = "agent_id"
	FieldExpenseID   = "expense_id"
	FieldAmountMinor = "amount_minor"
	FieldCurrency    = "currency"
	FieldFrom        = "from"
	FieldTo          = "to"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorKind   = "error_kind"
)

// Components defines standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentBackend = "backend"
)

// Operations defines the dispatchable operation names.
const (
	OpListExpenses    = "list_expenses"
	OpComputeBalances = "compute_balances"
	OpRecordExpense   = "record_expense"
	OpDashboard       = "dashboard"
)
