package models

import (
	"encoding/json"
	"time"
)

// Correction is one human edit captured during review. Stored corrections are immutable.
type Correction struct {
	ID               string    `json:"id,omitempty"`
	DocumentID       string    `json:"document_id"`
	FieldPath        string    `json:"field_path"`
	OriginalValue    string    `json:"original_value"`
	CorrectedValue   string    `json:"corrected_value"`
	ConfidenceBefore float64   `json:"confidence_before"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}

// TrainingExample tags a fully reviewed payload for later bulk retraining.
type TrainingExample struct {
	ID             string          `json:"id,omitempty"`
	DocumentID     string          `json:"document_id"`
	DocumentType   string          `json:"document_type"`
	GroundTruth    json.RawMessage `json:"ground_truth"`
	Notes          string          `json:"notes"`
	CorrectionsLen int             `json:"corrections_count"`
	CreatedAt      time.Time       `json:"created_at,omitempty"`
}

// TemplateData is the pattern oracle's view of a supplier's layout. Stored verbatim.
type TemplateData struct {
	FieldPatterns         map[string]any `json:"field_patterns,omitempty"`
	LayoutHints           map[string]any `json:"layout_hints,omitempty"`
	CommonValues          map[string]any `json:"common_values,omitempty"`
	ExtractionRules       map[string]any `json:"extraction_rules,omitempty"`
	ConfidenceAdjustments map[string]any `json:"confidence_adjustments,omitempty"`

	// Raw is the oracle output exactly as returned, including keys not listed above.
	Raw json.RawMessage `json:"-"`
}

// MarshalJSON writes the oracle's output unchanged when it is available.
func (t TemplateData) MarshalJSON() ([]byte, error) {
	if len(t.Raw) > 0 {
		return t.Raw, nil
	}
	type plain TemplateData
	return json.Marshal(plain(t))
}

// UnmarshalJSON keeps the raw bytes next to the typed view.
func (t *TemplateData) UnmarshalJSON(b []byte) error {
	type plain TemplateData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = TemplateData(p)
	t.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// AccuracyStats accumulates how often and how confidently a supplier's fields get corrected.
// PreviousAvgConfidenceBefore keeps the prior batch's mean next to the current one.
type AccuracyStats struct {
	TotalCorrections            int            `json:"total_corrections"`
	AvgConfidenceBefore         float64        `json:"avg_confidence_before"`
	PreviousAvgConfidenceBefore *float64       `json:"previous_avg_confidence_before,omitempty"`
	CorrectionFrequency         map[string]int `json:"correction_frequency"`
	LastUpdated                 time.Time      `json:"last_updated"`
}

// SupplierTemplate is the learned extraction template for one (supplier, document type) key.
type SupplierTemplate struct {
	ID            string        `json:"id,omitempty"`
	SupplierName  string        `json:"supplier_name"`
	DocumentType  string        `json:"document_type"`
	TemplateData  TemplateData  `json:"template_data"`
	AccuracyStats AccuracyStats `json:"accuracy_stats"`
	CreatedAt     time.Time     `json:"created_at,omitempty"`
	LastUpdated   time.Time     `json:"last_updated,omitempty"`
}

// Webhook is a subscriber registered for one event type.
type Webhook struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	URL       string `json:"url"`
	Secret    string `json:"-"`
	Active    bool   `json:"active"`
}

// PatternRequest is what the pattern-synthesis oracle needs to refresh a supplier template.
type PatternRequest struct {
	Supplier     string         `json:"supplier_name"`
	DocumentType string         `json:"document_type"`
	Existing     TemplateData   `json:"existing_template"`
	Corrections  []Correction   `json:"corrections"`
	Extraction   map[string]any `json:"original_extraction"`
}
