package models

// Validation verdicts, ordered from best to worst.
const (
	StatusPassed  = "passed"
	StatusWarning = "warning"
	StatusFailed  = "failed"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue codes produced by the local rule engine.
const (
	CodeArithmeticMismatch = "ARITHMETIC_MISMATCH"
	CodeRegisterMismatch   = "REGISTER_UNITS_MISMATCH"
	CodeDateOrder          = "DATE_ORDER"
	CodeInvalidDate        = "INVALID_DATE"
	CodeInvalidMPRN        = "INVALID_MPRN"
	CodeInvalidGPRN        = "INVALID_GPRN"
	CodeInvalidIBAN        = "INVALID_IBAN"
	CodeUnexpectedVATRate  = "UNEXPECTED_VAT_RATE"
	CodeMCCInconsistent    = "MCC_REGISTER_MISMATCH"
	CodeLowConfidence      = "LOW_CONFIDENCE"
	CodeLowOverall         = "LOW_OVERALL_CONFIDENCE"
	CodeValidationSkipped  = "VALIDATION_UNAVAILABLE"
)

// ValidationIssue is one finding of a validation run. Issues are never mutated once built.
type ValidationIssue struct {
	Field        string `json:"field"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	Severity     string `json:"severity"`
	CurrentValue string `json:"current_value,omitempty"`
	Expected     string `json:"expected,omitempty"`
}

// Reconciliation summarises the arithmetic cross-check.
type Reconciliation struct {
	ArithmeticOK bool   `json:"arithmetic_ok"`
	Details      string `json:"details"`
}

// ValidationResult is the verdict attached to a document.
type ValidationResult struct {
	Status            string            `json:"status"`
	OverallConfidence float64           `json:"overall_confidence"`
	Issues            []ValidationIssue `json:"issues"`
	Reconciliation    Reconciliation    `json:"reconciliation"`
	HITLRequired      bool              `json:"hitl_required"`
	HITLReasons       []string          `json:"hitl_reasons"`
}

// StatusRank orders verdicts so the worse one can be picked.
func StatusRank(status string) int {
	switch status {
	case StatusPassed:
		return 0
	case StatusWarning:
		return 1
	case StatusFailed:
		return 2
	default:
		return 1
	}
}

// WorseStatus returns whichever of a and b is the worse verdict.
func WorseStatus(a, b string) string {
	if StatusRank(b) > StatusRank(a) {
		return b
	}
	return a
}

// CriticalField is a critical field whose confidence fell below the critical bar.
type CriticalField struct {
	Field      string  `json:"field"`
	Confidence float64 `json:"confidence"`
}

// ReviewDecision is the outcome of the review gate for one ingestion.
type ReviewDecision struct {
	RequiresReview    bool            `json:"requires_review"`
	Reasons           []string        `json:"reasons"`
	OverallConfidence float64         `json:"overall_confidence"`
	CriticalFieldsOK  bool            `json:"critical_fields_ok"`
	CriticalFieldsLow []CriticalField `json:"critical_fields_low,omitempty"`
}
