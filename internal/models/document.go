package models

import (
	"encoding/json"
	"time"
)

// Document lifecycle states.
const (
	DocumentPendingReview = "pending_review"
	DocumentApproved      = "approved"
)

// ParsedData is everything the pipeline learned about a file, persisted as one JSON column.
type ParsedData struct {
	Classification Classification    `json:"classification"`
	Extracted      map[string]any    `json:"extracted"`
	Validation     *ValidationResult `json:"validation"`
}

// ConfidenceScores is the persisted summary of the review gate inputs.
type ConfidenceScores struct {
	Overall           float64         `json:"overall"`
	CriticalFieldsOK  bool            `json:"critical_fields_ok"`
	CriticalFieldsLow []CriticalField `json:"critical_fields_low,omitempty"`
}

// DocumentRecord is a persisted uploaded bill.
type DocumentRecord struct {
	ID                       string           `json:"id"`
	FileName                 string           `json:"file_name"`
	FileType                 string           `json:"file_type"`
	FileURL                  string           `json:"file_url"`
	PhoneNumber              string           `json:"phone_number"`
	Status                   string           `json:"status"`
	DocumentType             string           `json:"document_type"`
	ClassificationConfidence float64          `json:"classification_confidence"`
	ParsedData               ParsedData       `json:"parsed_data"`
	ConfidenceScores         ConfidenceScores `json:"confidence_scores"`
	RequiresReview           bool             `json:"requires_review"`
	ReviewReasons            []string         `json:"review_reasons"`
	Approved                 bool             `json:"approved"`
	ApprovedAt               *time.Time       `json:"approved_at,omitempty"`
	ReviewedBy               string           `json:"reviewed_by,omitempty"`
	OneBillResponse          json.RawMessage  `json:"onebill_response,omitempty"`
	OneBillSentAt            *time.Time       `json:"onebill_sent_at,omitempty"`
	OneBillError             string           `json:"onebill_error,omitempty"`
	OneBillAttemptedAt       *time.Time       `json:"onebill_attempted_at,omitempty"`
	CreatedAt                time.Time        `json:"created_at"`
	UpdatedAt                time.Time        `json:"updated_at"`
}

// Supplier returns the supplier recorded by classification, if any.
func (d *DocumentRecord) Supplier() string {
	return d.ParsedData.Classification.SupplierName
}

// BillingOutcome is the result of one submission to the billing API.
type BillingOutcome struct {
	Sent      bool            `json:"sent"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
	AttemptAt time.Time       `json:"attempted_at"`
}

// DocumentFilter selects documents for listing.
type DocumentFilter struct {
	Status string
	Limit  int
	Offset int
}
