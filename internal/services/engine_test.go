package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Onebillie/parsetastic/internal/models"
)

type fakeOracle struct {
	result *models.ValidationResult
	err    error
	calls  int
}

func (f *fakeOracle) Validate(_ context.Context, _ map[string]any, _ models.Classification) (*models.ValidationResult, error) {
	f.calls++
	return f.result, f.err
}

type failureCounter map[string]int

func (c failureCounter) OracleFailure(oracle string) { c[oracle]++ }

func TestEngine_OracleFailureFallsBackToReview(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("connection refused")}
	counter := failureCounter{}
	e := NewValidationEngine(models.DefaultThresholds(), oracle, counter)

	r := e.Run(context.Background(), &models.Document{Bills: []models.Bill{cleanBill()}}, map[string]any{})

	assert.Equal(t, models.StatusWarning, r.Status)
	assert.True(t, r.HITLRequired)
	assert.Contains(t, r.HITLReasons, "validation could not run: connection refused")
	assert.Equal(t, 1, counter["validation"])
}

func TestEngine_FallbackKeepsLocalFailure(t *testing.T) {
	b := cleanBill()
	b.Account.MPRN = str("bills[0].account.mprn", "999", 0.999)
	e := NewValidationEngine(models.DefaultThresholds(), &fakeOracle{err: errors.New("timeout")}, nil)

	r := e.Run(context.Background(), &models.Document{Bills: []models.Bill{b}}, nil)
	assert.Equal(t, models.StatusFailed, r.Status)
	assert.True(t, r.HITLRequired)
}

func TestEngine_NoOracleUsesLocalRules(t *testing.T) {
	e := NewValidationEngine(models.DefaultThresholds(), nil, nil)
	r := e.Run(context.Background(), &models.Document{Bills: []models.Bill{cleanBill()}}, nil)
	assert.Equal(t, models.StatusPassed, r.Status)
}

func TestMerge(t *testing.T) {
	local := &models.ValidationResult{
		Status:            models.StatusWarning,
		OverallConfidence: 0.93,
		Issues: []models.ValidationIssue{
			{Field: "bills[0].totals.vat_rate_percent", Code: models.CodeUnexpectedVATRate, Severity: models.SeverityWarning},
		},
		Reconciliation: models.Reconciliation{ArithmeticOK: true, Details: "local ok"},
		HITLReasons:    []string{},
	}
	remote := &models.ValidationResult{
		Status:            models.StatusPassed,
		OverallConfidence: 0.99,
		Issues: []models.ValidationIssue{
			{Field: "bills[0].totals.vat_rate_percent", Code: models.CodeUnexpectedVATRate, Severity: models.SeverityWarning},
			{Field: "bills[0].account.mprn", Code: "LOW_CONFIDENCE", Severity: models.SeverityWarning},
		},
		Reconciliation: models.Reconciliation{ArithmeticOK: false, Details: "oracle mismatch"},
		HITLRequired:   true,
		HITLReasons:    []string{"critical field mprn below 0.995"},
	}

	out := Merge(local, remote)
	require.Len(t, out.Issues, 2)
	assert.Equal(t, models.StatusWarning, out.Status)
	assert.Equal(t, 0.93, out.OverallConfidence)
	assert.False(t, out.Reconciliation.ArithmeticOK)
	assert.Equal(t, "local ok; oracle mismatch", out.Reconciliation.Details)
	assert.True(t, out.HITLRequired)
	assert.Equal(t, []string{"critical field mprn below 0.995"}, out.HITLReasons)
}

func TestMerge_WorstStatusWins(t *testing.T) {
	passed := &models.ValidationResult{Status: models.StatusPassed, Reconciliation: models.Reconciliation{ArithmeticOK: true}}
	failed := &models.ValidationResult{Status: models.StatusFailed, Reconciliation: models.Reconciliation{ArithmeticOK: true}}
	assert.Equal(t, models.StatusFailed, Merge(passed, failed).Status)
	assert.Equal(t, models.StatusFailed, Merge(failed, passed).Status)
	assert.Empty(t, Merge(passed, passed).Issues)
}
