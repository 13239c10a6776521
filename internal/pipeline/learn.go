package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/Onebillie/parsetastic/internal/learning"
	"github.com/Onebillie/parsetastic/internal/models"
)

// LearnInput feeds corrections straight into template learning.
// Supplier and DocumentType default to what the stored document says.
type LearnInput struct {
	DocumentID   string              `json:"document_id"`
	Corrections  []models.Correction `json:"corrections"`
	Supplier     string              `json:"supplier_name"`
	DocumentType string              `json:"document_type"`
}

// LearnResult is the refreshed template.
type LearnResult struct {
	Success              bool                     `json:"success"`
	TemplateUpdated      bool                     `json:"template_updated"`
	CorrectionsProcessed int                      `json:"corrections_processed"`
	Template             *models.SupplierTemplate `json:"template"`
	Events               []models.Event           `json:"-"`
}

// Learn stores the corrections and updates the supplier template. Unlike approval,
// a learning failure is the caller's error here.
func (p *Pipeline) Learn(ctx context.Context, in LearnInput) (*LearnResult, error) {
	if in.DocumentID == "" || len(in.Corrections) == 0 {
		return nil, models.WrapError(models.ErrInvalidInput, "pipeline: learn", eris.New("document_id and corrections are required"))
	}
	if p.Learner == nil {
		return nil, models.WrapError(models.ErrTemplateLearning, "pipeline: learn", models.ErrOracleUnavailable)
	}

	rec, err := p.Store.GetDocument(ctx, in.DocumentID)
	if err != nil {
		return nil, err
	}
	supplier := in.Supplier
	if supplier == "" {
		supplier = rec.Supplier()
	}
	docType := in.DocumentType
	if docType == "" {
		docType = rec.DocumentType
	}

	cs := make([]models.Correction, len(in.Corrections))
	for i, c := range in.Corrections {
		c.ID = ""
		c.DocumentID = rec.ID
		cs[i] = c
	}
	if err := p.Store.InsertCorrections(ctx, cs); err != nil {
		return nil, eris.Wrap(err, "pipeline: store corrections")
	}
	if p.Recorder != nil {
		p.Recorder.CorrectionsRecorded(len(cs))
	}

	tmpl, err := p.Learner.Learn(ctx, learning.Input{
		Supplier:     supplier,
		DocumentType: docType,
		Corrections:  cs,
		Extraction:   rec.ParsedData.Extracted,
	})
	if err != nil {
		return nil, err
	}
	return &LearnResult{
		Success:              true,
		TemplateUpdated:      true,
		CorrectionsProcessed: len(cs),
		Template:             tmpl,
		Events:               []models.Event{templateEvent(rec.ID, tmpl)},
	}, nil
}
