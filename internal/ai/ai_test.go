package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Onebillie/parsetastic/internal/models"
)

type fakeProvider struct {
	answer string
	err    error
	delay  time.Duration
	seen   []Request
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (string, error) {
	f.seen = append(f.seen, req)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.answer, f.err
}

func TestExtract_StripsFencesAndClassifies(t *testing.T) {
	p := &fakeProvider{answer: fence + "json\n" + `{
	  "supplier_details": {"supplier_name": "Energia", "supplier_name_conf": 0.99},
	  "payment_details": {"total_amount_due": 88.1}
	}` + "\n" + fence}

	hints := []models.SupplierTemplate{{SupplierName: "Energia", DocumentType: "electricity_bill"}}
	out, err := NewExtractor(p, nil, time.Second).Extract(context.Background(), []byte("png"), "image/png", hints)
	require.NoError(t, err)

	assert.Equal(t, "Energia", out.Classification.SupplierName)
	assert.Equal(t, "bill", out.Classification.DocumentClass)
	assert.Contains(t, out.Raw, "payment_details")

	require.Len(t, p.seen, 1)
	assert.Equal(t, []byte("png"), p.seen[0].Image)
	assert.Equal(t, "image/png", p.seen[0].MIMEType)
	assert.Contains(t, p.seen[0].System, "KNOWN SUPPLIER TEMPLATES")
	assert.Contains(t, p.seen[0].System, "Energia (electricity_bill)")
}

func TestExtract_MultiBillSupplierFallback(t *testing.T) {
	p := &fakeProvider{answer: `{"classification": {"document_class": "bill", "confidence": 0.9}, "bills": [{"supplier": {"name": "Flogas"}}]}`}
	out, err := NewExtractor(p, nil, 0).Extract(context.Background(), []byte("pdf"), "application/pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, "Flogas", out.Classification.SupplierName)
	assert.InDelta(t, 0.9, out.Classification.Confidence, 1e-9)
	assert.NotContains(t, p.seen[0].System, "KNOWN SUPPLIER TEMPLATES")
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
	}{
		{"provider error", &fakeProvider{err: errors.New("503")}},
		{"not json", &fakeProvider{answer: "I could not read the bill"}},
		{"no containers", &fakeProvider{answer: `{"hello": "world"}`}},
		{"timeout", &fakeProvider{answer: `{"bills": []}`, delay: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExtractor(tt.provider, nil, 20*time.Millisecond).Extract(context.Background(), []byte("x"), "image/jpeg", nil)
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.ErrExtractionFailed))
		})
	}

	_, err := NewExtractor(&fakeProvider{}, nil, 0).Extract(context.Background(), nil, "image/jpeg", nil)
	assert.True(t, models.IsKind(err, models.ErrInvalidInput))
}

func TestValidationOracle_LegacyArithmeticKey(t *testing.T) {
	p := &fakeProvider{answer: `{
	  "status": "warning",
	  "overall_confidence": 0.95,
	  "issues": [{"field": "payment_details.total_amount_due", "code": "ARITHMETIC_MISMATCH", "message": "off by 2", "severity": "error", "current_value": 120.5, "expected": "118.50"}],
	  "reconciliation": {"arithmetics_ok": false, "details": "sum is 118.50"},
	  "hitl_required": true,
	  "hitl_reasons": ["totals do not add up"]
	}`}
	res, err := NewValidationOracle(p, nil, time.Second).Validate(context.Background(), map[string]any{"a": 1}, models.Classification{DocumentClass: "bill"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusWarning, res.Status)
	assert.False(t, res.Reconciliation.ArithmeticOK)
	assert.True(t, res.HITLRequired)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "120.5", res.Issues[0].CurrentValue)
	assert.Equal(t, "118.50", res.Issues[0].Expected)
	assert.True(t, strings.HasPrefix(p.seen[0].Prompt, "Validate this extracted bill data"))
}

func TestValidationOracle_RejectsOffSchemaAnswer(t *testing.T) {
	p := &fakeProvider{answer: `{"status": "great", "hitl_required": "no"}`}
	_, err := NewValidationOracle(p, nil, time.Second).Validate(context.Background(), map[string]any{}, models.Classification{})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrMalformedOracleOutput))

	_, err = NewValidationOracle(&fakeProvider{err: errors.New("down")}, nil, time.Second).Validate(context.Background(), map[string]any{}, models.Classification{})
	assert.True(t, models.IsKind(err, models.ErrOracleUnavailable))
}

func TestPatternOracle_Synthesize(t *testing.T) {
	p := &fakeProvider{answer: `{"field_patterns": {"mprn": {"regex": "10\\d{9}"}}, "novel": 1}`}
	o := NewPatternOracle(p, nil, time.Second)

	data, err := o.Synthesize(context.Background(), models.PatternRequest{
		Supplier:     "Electric Ireland",
		DocumentType: "electricity_bill",
		Corrections:  []models.Correction{{FieldPath: "electricity_bill.mprn", CorrectedValue: "10012345678"}},
	})
	require.NoError(t, err)
	assert.Contains(t, data.FieldPatterns, "mprn")
	assert.Contains(t, string(data.Raw), `"novel"`)
	assert.Contains(t, p.seen[0].Prompt, "Electric Ireland (electricity_bill)")
	assert.NotContains(t, p.seen[0].System, "EXISTING TEMPLATE")

	_, err = NewPatternOracle(&fakeProvider{answer: `["not", "an", "object"]`}, nil, time.Second).Synthesize(context.Background(), models.PatternRequest{})
	assert.True(t, models.IsKind(err, models.ErrMalformedOracleOutput))
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), "openai", OpenAIConfig{}, GeminiConfig{})
	assert.Error(t, err)

	p, err := NewProvider(context.Background(), "OpenAI", OpenAIConfig{APIKey: "k"}, GeminiConfig{})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = NewProvider(context.Background(), "ollama", OpenAIConfig{}, GeminiConfig{})
	assert.Error(t, err)
}
