// Package confidence turns per-field confidence annotations into document level trust signals.
package confidence

import (
	"github.com/Onebillie/parsetastic/internal/models"
)

// Overall is the minimum confidence over every annotation in the document.
// A document with no annotations scores 0: nothing known means nothing trusted.
func Overall(doc *models.Document) float64 {
	if doc == nil {
		return 0
	}
	return Min(doc.Scores())
}

// Min returns the smallest confidence in scores, clamped to [0,1], or 0 when scores is empty.
func Min(scores []models.Score) float64 {
	if len(scores) == 0 {
		return 0
	}
	lowest := 1.0
	for _, s := range scores {
		if s.Confidence < lowest {
			lowest = s.Confidence
		}
	}
	if lowest < 0 {
		return 0
	}
	return lowest
}

// CriticalFields lists the fields of a bill whose mistakes cost money or misroute a meter.
func CriticalFields(b models.Bill) []models.Valued[string] {
	return []models.Valued[string]{
		scoreOnly(b.Totals.TotalDue),
		b.Billing.DueDate,
		b.Account.AccountNumber,
		b.Account.MPRN,
		b.Account.GPRN,
	}
}

func scoreOnly[T any](v models.Valued[T]) models.Valued[string] {
	return models.Valued[string]{
		Confidence: v.Confidence,
		Found:      v.Found,
		Scored:     v.Scored,
		Path:       v.Path,
	}
}

// CheckCritical returns every critical field below threshold.
// Only fields without a confidence annotation are skipped: an electricity-only bill has no GPRN to fail.
// A critical field that is annotated but came back null still counts.
func CheckCritical(doc *models.Document, threshold float64) []models.CriticalField {
	if doc == nil {
		return nil
	}
	var low []models.CriticalField
	for _, b := range doc.Bills {
		for _, f := range CriticalFields(b) {
			if !f.Scored {
				continue
			}
			if f.Confidence < threshold {
				low = append(low, models.CriticalField{Field: f.Path, Confidence: f.Confidence})
			}
		}
	}
	return low
}
