package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/models"
	"github.com/Onebillie/parsetastic/internal/resilience"
)

// maxHints caps how many supplier templates are appended to the parse prompt.
const maxHints = 5

// Extraction is the oracle's raw tree plus what it says the document is.
type Extraction struct {
	Raw            map[string]any
	Classification models.Classification
	Duration       time.Duration
}

// Extractor turns an uploaded bill into a raw extraction tree.
type Extractor struct {
	provider Provider
	exec     *resilience.Executor
	timeout  time.Duration
	schema   *jsonschema.Schema
}

// NewExtractor wraps provider. A zero timeout means 60 seconds.
func NewExtractor(provider Provider, exec *resilience.Executor, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Extractor{
		provider: provider,
		exec:     exec,
		timeout:  timeout,
		schema:   mustSchema("extraction.json", extractionSchema),
	}
}

// Extract runs the parse prompt over file. Any failure is an ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, file []byte, mimeType string, hints []models.SupplierTemplate) (*Extraction, error) {
	if e == nil || e.provider == nil {
		return nil, models.WrapError(models.ErrExtractionFailed, "ai: extract", models.ErrOracleUnavailable)
	}
	if len(file) == 0 {
		return nil, models.WrapError(models.ErrInvalidInput, "ai: extract", eris.New("empty file"))
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var answer string
	err := e.exec.Execute(ctx, "ai.extraction", func(ctx context.Context) error {
		var err error
		answer, err = e.provider.Complete(ctx, Request{
			System:   parseSystemPrompt + hintBlock(hints),
			Prompt:   parseUserPrompt,
			Image:    file,
			MIMEType: mimeType,
		})
		return err
	}, resilience.SkipCanceled)
	if err != nil {
		return nil, models.WrapError(models.ErrExtractionFailed, "ai: extract", err)
	}

	raw, _, err := decodeObject(answer, e.schema)
	if err != nil {
		return nil, models.WrapError(models.ErrExtractionFailed, "ai: extract", err)
	}

	out := &Extraction{
		Raw:            raw,
		Classification: classify(raw),
		Duration:       time.Since(start),
	}
	zap.L().Info("bill extracted",
		zap.String("provider", e.provider.Name()),
		zap.String("supplier", out.Classification.SupplierName),
		zap.String("document_class", out.Classification.DocumentClass),
		zap.Duration("duration", out.Duration),
	)
	return out, nil
}

// classify reads the classification block, falling back to wherever the supplier name appears.
func classify(raw map[string]any) models.Classification {
	var c models.Classification
	if block, ok := raw["classification"].(map[string]any); ok {
		c.DocumentClass = asString(block["document_class"])
		c.DocumentSubclass = asString(block["document_subclass"])
		c.SupplierName = asString(block["supplier_name"])
		if f, ok := block["confidence"].(float64); ok {
			c.Confidence = f
		}
	}
	if c.SupplierName == "" {
		if s, ok := raw["supplier_details"].(map[string]any); ok {
			c.SupplierName = asString(s["supplier_name"])
		}
	}
	if c.SupplierName == "" {
		if bills, ok := raw["bills"].([]any); ok && len(bills) > 0 {
			if b, ok := bills[0].(map[string]any); ok {
				if s, ok := b["supplier"].(map[string]any); ok {
					c.SupplierName = asString(s["name"])
				}
			}
		}
	}
	if c.DocumentClass == "" {
		c.DocumentClass = "bill"
	}
	return c
}

func asString(v any) string {
	s, _ := v.(string)
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "n/a") {
		return ""
	}
	return s
}

// hintBlock renders known supplier templates as extra prompt context.
func hintBlock(templates []models.SupplierTemplate) string {
	if len(templates) == 0 {
		return ""
	}
	if len(templates) > maxHints {
		templates = templates[:maxHints]
	}
	var b strings.Builder
	b.WriteString("\n\nKNOWN SUPPLIER TEMPLATES (use the one matching this bill's supplier, if any):\n")
	for _, t := range templates {
		data, err := json.Marshal(t.TemplateData)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.SupplierName, t.DocumentType, data)
	}
	return b.String()
}
