package audithook

// Action constants for audit events.
const (
	// Reservation actions
	ActionReservationCreated  = "reservation.created"
	ActionReservationAdjusted = "reservation.adjusted"
	ActionReservationRefunded = "reservation.refunded"
	ActionReservationExpired  = "reservation.expired"

	// Admission actions
	ActionInsufficientCredits   = "admission.insufficient_credits"
	ActionSpendingLimitExceeded = "admission.limit_exceeded"

	// Ledger actions
	ActionBufferCommitted = "ledger.buffer_committed"
)

// Resource constants for audit events.
const (
	ResourceWorkspace   = "workspace"
	ResourceReservation = "reservation"
	ResourceLedger      = "ledger"
)

// Category constants for audit events.
const (
	CategoryCredits   = "credits"
	CategoryAdmission = "admission"
	CategoryLedger    = "ledger"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
