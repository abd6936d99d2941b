package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldClientIP  = "client_ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldError     = "error"
	FieldOperation = "operation"

	FieldChildID     = "child_id"
	FieldKind        = "kind"
	FieldPot         = "pot"
	FieldAmountCents = "amount_cents"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentAudit    = "audit"
	ComponentWorker   = "worker"
	ComponentSecurity = "security"
)

// Operations defines standard operation names
const (
	OpApply = "apply"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithChild adds the child identifier
func (f LogFields) WithChild(childID string) LogFields {
	f[FieldChildID] = childID
	return f
}

// WithEntry adds ledger-entry fields
func (f LogFields) WithEntry(kind, pot string, amountCents int64) LogFields {
	f[FieldKind] = kind
	f[FieldPot] = pot
	f[FieldAmountCents] = amountCents
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
