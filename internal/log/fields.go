package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldCardID        = "card_id"
	FieldCustomerID    = "customer_id"
	FieldAmount        = "amount"
	FieldTransactionID = "transaction_id"
	FieldViolations    = "violations"
	FieldOutcome       = "outcome"
	FieldError         = "error"
	FieldDurationMs    = "duration_ms"
)

// Component names used across the service
const (
	ComponentAPI         = "api"
	ComponentLoadService = "load_service"
	ComponentClassifier  = "gateway_classifier"
	ComponentStorage     = "storage"
	ComponentAudit       = "audit_worker"
	ComponentReport      = "report_exporter"
)
