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

// PatternOracle asks a model to rewrite a supplier template from reviewer corrections.
type PatternOracle struct {
	provider Provider
	exec     *resilience.Executor
	timeout  time.Duration
	schema   *jsonschema.Schema
}

func NewPatternOracle(provider Provider, exec *resilience.Executor, timeout time.Duration) *PatternOracle {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PatternOracle{
		provider: provider,
		exec:     exec,
		timeout:  timeout,
		schema:   mustSchema("template.json", templateSchema),
	}
}

// Synthesize returns the new template data exactly as the model produced it.
func (o *PatternOracle) Synthesize(ctx context.Context, req models.PatternRequest) (models.TemplateData, error) {
	if o == nil || o.provider == nil {
		return models.TemplateData{}, models.ErrOracleUnavailable
	}

	system := patternSystemPrompt
	if len(req.Existing.Raw) > 0 || req.Existing.FieldPatterns != nil {
		existing, err := json.MarshalIndent(req.Existing, "", "  ")
		if err == nil {
			system += "\n\nEXISTING TEMPLATE:\n" + string(existing)
		}
	}
	corrections, err := json.MarshalIndent(req.Corrections, "", "  ")
	if err != nil {
		return models.TemplateData{}, models.WrapError(models.ErrInvalidInput, "ai: synthesize", err)
	}
	extraction, err := json.MarshalIndent(req.Extraction, "", "  ")
	if err != nil {
		return models.TemplateData{}, models.WrapError(models.ErrInvalidInput, "ai: synthesize", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var answer string
	err = o.exec.Execute(ctx, "ai.patterns", func(ctx context.Context) error {
		var err error
		answer, err = o.provider.Complete(ctx, Request{
			System: system,
			Prompt: fmt.Sprintf("Update the supplier template for %s (%s) based on these corrections:\n\nCorrections: %s\nDocument data: %s",
				req.Supplier, req.DocumentType, corrections, extraction),
		})
		return err
	}, resilience.SkipCanceled)
	if err != nil {
		return models.TemplateData{}, models.WrapError(models.ErrOracleUnavailable, "ai: synthesize", err)
	}

	_, cleaned, err := decodeObject(answer, o.schema)
	if err != nil {
		return models.TemplateData{}, err
	}
	var data models.TemplateData
	if err := json.Unmarshal(cleaned, &data); err != nil {
		return models.TemplateData{}, models.WrapError(models.ErrMalformedOracleOutput, "ai: synthesize", err)
	}
	return data, nil
}
