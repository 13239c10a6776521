// Package learning folds reviewer corrections into per-supplier extraction templates.
package learning

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/models"
)

// Store persists supplier templates. GetTemplate returns nil, nil when the key has no template yet.
type Store interface {
	GetTemplate(ctx context.Context, supplier, documentType string) (*models.SupplierTemplate, error)
	UpsertTemplate(ctx context.Context, t *models.SupplierTemplate) error
}

// PatternOracle rewrites a template's hints from a batch of corrections.
type PatternOracle interface {
	Synthesize(ctx context.Context, req models.PatternRequest) (models.TemplateData, error)
}

// Input is one batch of corrections for a supplier and document type.
type Input struct {
	Supplier     string
	DocumentType string
	Corrections  []models.Correction
	Extraction   map[string]any
}

// TemplateLearner updates the supplier template for each correction batch.
type TemplateLearner struct {
	store  Store
	oracle PatternOracle
	now    func() time.Time
}

// NewTemplateLearner wires a learner.
func NewTemplateLearner(store Store, oracle PatternOracle) *TemplateLearner {
	return &TemplateLearner{store: store, oracle: oracle, now: time.Now}
}

// Learn creates or updates the template for in's key. Any oracle or store failure fails the whole call
// and nothing is written.
func (l *TemplateLearner) Learn(ctx context.Context, in Input) (*models.SupplierTemplate, error) {
	if in.Supplier == "" {
		return nil, models.WrapError(models.ErrInvalidInput, "learning: learn", eris.New("supplier name is required"))
	}
	if len(in.Corrections) == 0 {
		return nil, models.WrapError(models.ErrInvalidInput, "learning: learn", eris.New("no corrections to learn from"))
	}

	tmpl, err := l.store.GetTemplate(ctx, in.Supplier, in.DocumentType)
	if err != nil {
		return nil, eris.Wrap(err, "learning: load template")
	}
	if tmpl == nil {
		tmpl = &models.SupplierTemplate{
			SupplierName: in.Supplier,
			DocumentType: in.DocumentType,
		}
	}

	tmpl.AccuracyStats = UpdateStats(tmpl.AccuracyStats, in.Corrections, l.now().UTC())

	if l.oracle == nil {
		return nil, models.WrapError(models.ErrTemplateLearning, "learning: synthesize", models.ErrOracleUnavailable)
	}
	data, err := l.oracle.Synthesize(ctx, models.PatternRequest{
		Supplier:     in.Supplier,
		DocumentType: in.DocumentType,
		Existing:     tmpl.TemplateData,
		Corrections:  in.Corrections,
		Extraction:   in.Extraction,
	})
	if err != nil {
		return nil, models.WrapError(models.ErrTemplateLearning, "learning: synthesize", err)
	}
	tmpl.TemplateData = data
	tmpl.LastUpdated = tmpl.AccuracyStats.LastUpdated

	if err := l.store.UpsertTemplate(ctx, tmpl); err != nil {
		return nil, eris.Wrap(err, "learning: save template")
	}

	zap.L().Info("supplier template updated",
		zap.String("supplier", in.Supplier),
		zap.String("document_type", in.DocumentType),
		zap.Int("corrections", len(in.Corrections)),
		zap.Float64("avg_confidence_before", tmpl.AccuracyStats.AvgConfidenceBefore),
	)
	return tmpl, nil
}

// UpdateStats folds a batch into the running statistics. Frequencies only ever grow.
// The average and total describe the batch just processed; the previous average is kept alongside.
func UpdateStats(prev models.AccuracyStats, batch []models.Correction, at time.Time) models.AccuracyStats {
	out := models.AccuracyStats{
		CorrectionFrequency: make(map[string]int, len(prev.CorrectionFrequency)+len(batch)),
		TotalCorrections:    len(batch),
		LastUpdated:         at,
	}
	for path, n := range prev.CorrectionFrequency {
		out.CorrectionFrequency[path] = n
	}
	if prev.TotalCorrections > 0 {
		avg := prev.AvgConfidenceBefore
		out.PreviousAvgConfidenceBefore = &avg
	}

	var sum float64
	for _, c := range batch {
		out.CorrectionFrequency[c.FieldPath]++
		sum += c.ConfidenceBefore
	}
	if len(batch) > 0 {
		out.AvgConfidenceBefore = sum / float64(len(batch))
	}
	return out
}
