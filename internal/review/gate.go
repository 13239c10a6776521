// Package review decides whether an ingested bill can be approved without a human.
package review

import (
	"fmt"
	"strings"

	"github.com/Onebillie/parsetastic/internal/models"
)

// GateInput is everything the review gate looks at.
type GateInput struct {
	OverallConfidence float64
	CriticalLow       []models.CriticalField
	Validation        *models.ValidationResult
	Autopilot         bool
}

// Decide is the review gate. Any one condition forces review:
// a low critical field, overall confidence under the bar, autopilot off,
// the validator asking for a human, or a failed validation.
// It has no side effects; equal inputs give equal decisions.
func Decide(in GateInput, overallThreshold float64) models.ReviewDecision {
	d := models.ReviewDecision{
		OverallConfidence: in.OverallConfidence,
		CriticalFieldsOK:  len(in.CriticalLow) == 0,
		CriticalFieldsLow: in.CriticalLow,
		Reasons:           []string{},
	}

	if len(in.CriticalLow) > 0 {
		names := make([]string, 0, len(in.CriticalLow))
		for _, f := range in.CriticalLow {
			names = append(names, fmt.Sprintf("%s (%.3f)", f.Field, f.Confidence))
		}
		d.Reasons = append(d.Reasons, "critical fields below confidence threshold: "+strings.Join(names, ", "))
	}
	if in.OverallConfidence < overallThreshold {
		d.Reasons = append(d.Reasons, fmt.Sprintf("overall confidence %.3f is below %.2f", in.OverallConfidence, overallThreshold))
	}
	if !in.Autopilot {
		d.Reasons = append(d.Reasons, "autopilot is disabled")
	}
	if v := in.Validation; v != nil {
		if v.HITLRequired {
			reason := "validation requested human review"
			if len(v.HITLReasons) > 0 {
				reason += ": " + strings.Join(v.HITLReasons, "; ")
			}
			d.Reasons = append(d.Reasons, reason)
		}
		if v.Status == models.StatusFailed {
			d.Reasons = append(d.Reasons, "validation failed")
		}
	} else {
		// No verdict at all is treated like a verdict that could not run.
		d.Reasons = append(d.Reasons, "validation result missing")
	}

	d.RequiresReview = len(d.Reasons) > 0
	return d
}

// Status maps a decision to the document lifecycle state.
func Status(d models.ReviewDecision) string {
	if d.RequiresReview {
		return models.DocumentPendingReview
	}
	return models.DocumentApproved
}
