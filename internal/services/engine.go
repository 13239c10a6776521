package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/models"
)

// ValidationOracle is the external model that reviews an extraction.
type ValidationOracle interface {
	Validate(ctx context.Context, raw map[string]any, c models.Classification) (*models.ValidationResult, error)
}

// FailureRecorder counts oracle failures. *metrics.Pipeline satisfies it.
type FailureRecorder interface {
	OracleFailure(oracle string)
}

// ValidationEngine combines the local rules with the validation oracle's verdict.
type ValidationEngine struct {
	local   *BillValidator
	oracle  ValidationOracle
	metrics FailureRecorder
}

// NewValidationEngine builds an engine. oracle may be nil, in which case only the local rules run.
func NewValidationEngine(t models.Thresholds, oracle ValidationOracle, metrics FailureRecorder) *ValidationEngine {
	return &ValidationEngine{
		local:   NewBillValidator(t),
		oracle:  oracle,
		metrics: metrics,
	}
}

// Run never fails. When the oracle cannot answer, the result is forced into human review.
func (e *ValidationEngine) Run(ctx context.Context, doc *models.Document, raw map[string]any) *models.ValidationResult {
	local := e.local.Validate(doc)
	if e.oracle == nil {
		return local
	}

	var c models.Classification
	if doc != nil {
		c = doc.Classification
	}
	remote, err := e.oracle.Validate(ctx, raw, c)
	if err != nil {
		zap.L().Warn("validation oracle failed, using fallback verdict", zap.Error(err))
		if e.metrics != nil {
			e.metrics.OracleFailure("validation")
		}
		return Fallback(local, err)
	}
	return Merge(local, remote)
}

// Fallback turns the local verdict into a conservative one after the oracle failed.
func Fallback(local *models.ValidationResult, cause error) *models.ValidationResult {
	out := *local
	out.Issues = append(append([]models.ValidationIssue{}, local.Issues...), models.ValidationIssue{
		Field:    "validation",
		Code:     models.CodeValidationSkipped,
		Message:  "validation oracle unavailable",
		Severity: models.SeverityWarning,
	})
	out.Status = models.WorseStatus(local.Status, models.StatusWarning)
	out.HITLRequired = true
	out.HITLReasons = append(append([]string{}, local.HITLReasons...), "validation could not run: "+cause.Error())
	return &out
}

// Merge keeps the worse verdict of the two. Issues are unioned by field and code.
func Merge(local, remote *models.ValidationResult) *models.ValidationResult {
	if remote == nil {
		return local
	}
	out := &models.ValidationResult{
		Status:            models.WorseStatus(local.Status, remote.Status),
		OverallConfidence: local.OverallConfidence,
		HITLRequired:      local.HITLRequired || remote.HITLRequired,
		Reconciliation: models.Reconciliation{
			ArithmeticOK: local.Reconciliation.ArithmeticOK && remote.Reconciliation.ArithmeticOK,
			Details:      joinNonEmpty(local.Reconciliation.Details, remote.Reconciliation.Details),
		},
	}

	seen := map[string]bool{}
	for _, list := range [][]models.ValidationIssue{local.Issues, remote.Issues} {
		for _, issue := range list {
			key := issue.Field + "|" + issue.Code
			if seen[key] {
				continue
			}
			seen[key] = true
			out.Issues = append(out.Issues, issue)
		}
	}
	if out.Issues == nil {
		out.Issues = []models.ValidationIssue{}
	}
	out.HITLReasons = append(append([]string{}, local.HITLReasons...), remote.HITLReasons...)
	return out
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "; " + b
}
