package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Onebillie/parsetastic/internal/models"
)

func passed() *models.ValidationResult {
	return &models.ValidationResult{Status: models.StatusPassed}
}

func TestDecide_AutoApprove(t *testing.T) {
	d := Decide(GateInput{OverallConfidence: 0.93, Validation: passed(), Autopilot: true}, 0.90)

	assert.False(t, d.RequiresReview)
	assert.Empty(t, d.Reasons)
	assert.True(t, d.CriticalFieldsOK)
	assert.Equal(t, models.DocumentApproved, Status(d))
}

func TestDecide_CriticalFieldLow(t *testing.T) {
	low := []models.CriticalField{{Field: "bills[0].account.mprn", Confidence: 0.80}}
	d := Decide(GateInput{OverallConfidence: 0.93, CriticalLow: low, Validation: passed(), Autopilot: true}, 0.90)

	assert.True(t, d.RequiresReview)
	assert.False(t, d.CriticalFieldsOK)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "critical fields")
	assert.Contains(t, d.Reasons[0], "bills[0].account.mprn (0.800)")
	assert.Equal(t, models.DocumentPendingReview, Status(d))
}

func TestDecide_EachConditionAloneForcesReview(t *testing.T) {
	base := GateInput{OverallConfidence: 0.95, Validation: passed(), Autopilot: true}

	tests := []struct {
		name   string
		mutate func(*GateInput)
	}{
		{"critical", func(in *GateInput) { in.CriticalLow = []models.CriticalField{{Field: "total_due", Confidence: 0.9}} }},
		{"overall", func(in *GateInput) { in.OverallConfidence = 0.89 }},
		{"autopilot", func(in *GateInput) { in.Autopilot = false }},
		{"hitl", func(in *GateInput) { in.Validation = &models.ValidationResult{Status: models.StatusWarning, HITLRequired: true} }},
		{"failed", func(in *GateInput) { in.Validation = &models.ValidationResult{Status: models.StatusFailed} }},
		{"missing verdict", func(in *GateInput) { in.Validation = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			d := Decide(in, 0.90)
			assert.True(t, d.RequiresReview)
			assert.Len(t, d.Reasons, 1)
		})
	}
}

func TestDecide_AutopilotOffAlwaysReviews(t *testing.T) {
	for _, conf := range []float64{0, 0.5, 0.9, 0.999, 1} {
		d := Decide(GateInput{OverallConfidence: conf, Validation: passed(), Autopilot: false}, 0.90)
		assert.True(t, d.RequiresReview, "confidence %v", conf)
	}
}

func TestDecide_MonotoneInOverallConfidence(t *testing.T) {
	prev := false
	for conf := 1.0; conf >= 0; conf -= 0.01 {
		d := Decide(GateInput{OverallConfidence: conf, Validation: passed(), Autopilot: true}, 0.90)
		if prev {
			assert.True(t, d.RequiresReview, "flipped back at %v", conf)
		}
		prev = d.RequiresReview
	}
	assert.True(t, prev)
}

func TestDecide_ValidationFallbackReasons(t *testing.T) {
	v := &models.ValidationResult{
		Status:       models.StatusWarning,
		HITLRequired: true,
		HITLReasons:  []string{"validation could not run: timeout"},
	}
	d := Decide(GateInput{OverallConfidence: 0.99, Validation: v, Autopilot: true}, 0.90)
	require.Len(t, d.Reasons, 1)
	assert.Equal(t, "validation requested human review: validation could not run: timeout", d.Reasons[0])
}

func TestDecide_Deterministic(t *testing.T) {
	in := GateInput{
		OverallConfidence: 0.5,
		CriticalLow:       []models.CriticalField{{Field: "due_date", Confidence: 0.4}},
		Validation:        &models.ValidationResult{Status: models.StatusFailed, HITLRequired: true},
	}
	assert.Equal(t, Decide(in, 0.90), Decide(in, 0.90))
	assert.Len(t, Decide(in, 0.90).Reasons, 5)
}
