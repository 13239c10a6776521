package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Onebillie/parsetastic/internal/models"
	"github.com/Onebillie/parsetastic/internal/resilience"
)

// ValidationOracle asks a model to review an extraction.
type ValidationOracle struct {
	provider Provider
	exec     *resilience.Executor
	timeout  time.Duration
	schema   *jsonschema.Schema
}

// NewValidationOracle wraps provider. A zero timeout means 30 seconds.
func NewValidationOracle(provider Provider, exec *resilience.Executor, timeout time.Duration) *ValidationOracle {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ValidationOracle{
		provider: provider,
		exec:     exec,
		timeout:  timeout,
		schema:   mustSchema("validation.json", validationSchema),
	}
}

type wireIssue struct {
	Field        string `json:"field"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	Severity     string `json:"severity"`
	CurrentValue any    `json:"current_value"`
	Expected     any    `json:"expected"`
}

type wireResult struct {
	Status            string      `json:"status"`
	OverallConfidence float64     `json:"overall_confidence"`
	Issues            []wireIssue `json:"issues"`
	Reconciliation    struct {
		ArithmeticOK  *bool  `json:"arithmetic_ok"`
		ArithmeticsOK *bool  `json:"arithmetics_ok"`
		Details       string `json:"details"`
	} `json:"reconciliation"`
	HITLRequired bool     `json:"hitl_required"`
	HITLReasons  []string `json:"hitl_reasons"`
}

// Validate returns the oracle's verdict, or an error when it cannot be reached or answers off-schema.
func (o *ValidationOracle) Validate(ctx context.Context, raw map[string]any, c models.Classification) (*models.ValidationResult, error) {
	if o == nil || o.provider == nil {
		return nil, models.ErrOracleUnavailable
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, models.WrapError(models.ErrInvalidInput, "ai: validate", err)
	}
	class := c.DocumentClass
	if class == "" {
		class = "bill"
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var answer string
	err = o.exec.Execute(ctx, "ai.validation", func(ctx context.Context) error {
		var err error
		answer, err = o.provider.Complete(ctx, Request{
			System: validationSystemPrompt,
			Prompt: fmt.Sprintf("Validate this extracted %s data:\n\n%s\n\nCheck all arithmetic, date logic, identifier formats, and confidence thresholds. Flag any issues.", class, data),
		})
		return err
	}, resilience.SkipCanceled)
	if err != nil {
		return nil, models.WrapError(models.ErrOracleUnavailable, "ai: validate", err)
	}

	_, cleaned, err := decodeObject(answer, o.schema)
	if err != nil {
		return nil, err
	}
	var w wireResult
	if err := json.Unmarshal(cleaned, &w); err != nil {
		return nil, models.WrapError(models.ErrMalformedOracleOutput, "ai: validate", err)
	}
	return w.result(), nil
}

func (w wireResult) result() *models.ValidationResult {
	out := &models.ValidationResult{
		Status:            w.Status,
		OverallConfidence: w.OverallConfidence,
		Issues:            make([]models.ValidationIssue, 0, len(w.Issues)),
		HITLRequired:      w.HITLRequired,
		HITLReasons:       w.HITLReasons,
	}
	out.Reconciliation.Details = w.Reconciliation.Details
	switch {
	case w.Reconciliation.ArithmeticOK != nil:
		out.Reconciliation.ArithmeticOK = *w.Reconciliation.ArithmeticOK
	case w.Reconciliation.ArithmeticsOK != nil:
		out.Reconciliation.ArithmeticOK = *w.Reconciliation.ArithmeticsOK
	default:
		out.Reconciliation.ArithmeticOK = true
	}
	for _, i := range w.Issues {
		sev := i.Severity
		if sev == "" {
			sev = models.SeverityWarning
		}
		out.Issues = append(out.Issues, models.ValidationIssue{
			Field:        i.Field,
			Code:         i.Code,
			Message:      i.Message,
			Severity:     sev,
			CurrentValue: text(i.CurrentValue),
			Expected:     text(i.Expected),
		})
	}
	if out.HITLReasons == nil {
		out.HITLReasons = []string{}
	}
	return out
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
