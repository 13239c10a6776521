package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/corrections"
	"github.com/Onebillie/parsetastic/internal/learning"
	"github.com/Onebillie/parsetastic/internal/models"
)

// ApproveInput is a reviewer's decision on one document.
// EditedData, when set, replaces the stored extraction wholesale and every changed leaf becomes a correction.
// Corrections are applied on top of it.
type ApproveInput struct {
	DocumentID  string             `json:"document_id"`
	EditedData  map[string]any     `json:"edited_data,omitempty"`
	Corrections []corrections.Edit `json:"corrections,omitempty"`
	ReviewerID  string             `json:"-"`
}

// ApproveResult reports what approval did. A billing failure is reported here, never as an error.
type ApproveResult struct {
	Success          bool            `json:"success"`
	DocumentID       string          `json:"document_id"`
	CorrectionsSaved int             `json:"corrections_saved"`
	OneBillSent      bool            `json:"onebill_sent"`
	OneBillResponse  json.RawMessage `json:"onebill_response"`
	OneBillError     *string         `json:"onebill_error"`
	TemplateUpdated  bool            `json:"template_updated"`
	LearningError    string          `json:"learning_error,omitempty"`
	Events           []models.Event  `json:"-"`
}

// Approve marks a document approved, stores the reviewer's corrections and a training example,
// submits the reviewed data to billing and finally refreshes the supplier template.
func (p *Pipeline) Approve(ctx context.Context, in ApproveInput) (*ApproveResult, error) {
	if in.DocumentID == "" {
		return nil, models.WrapError(models.ErrInvalidInput, "pipeline: approve", eris.New("document_id is required"))
	}
	log := logFor(in.DocumentID)

	rec, err := p.Store.GetDocument(ctx, in.DocumentID)
	if err != nil {
		return nil, err
	}
	original := rec.ParsedData.Extracted

	base := original
	session := corrections.NewSession(rec.ID, original)
	if in.EditedData != nil {
		base = in.EditedData
		if err := session.RecordEdited(in.EditedData); err != nil {
			return nil, models.WrapError(models.ErrInvalidInput, "pipeline: approve", err)
		}
	}
	if err := session.RecordAll(in.Corrections); err != nil {
		return nil, models.WrapError(models.ErrInvalidInput, "pipeline: approve", err)
	}
	final := base
	if len(in.Corrections) > 0 {
		edited := corrections.NewSession(rec.ID, base)
		if err := edited.RecordAll(in.Corrections); err != nil {
			return nil, models.WrapError(models.ErrInvalidInput, "pipeline: approve", err)
		}
		if final, err = edited.Apply(); err != nil {
			return nil, models.WrapError(models.ErrInvalidInput, "pipeline: approve", err)
		}
	}
	cs := session.Corrections()

	if _, err := p.Store.ApproveDocument(ctx, rec.ID, final, in.ReviewerID); err != nil {
		return nil, err
	}
	if err := p.Store.InsertCorrections(ctx, cs); err != nil {
		return nil, eris.Wrap(err, "pipeline: store corrections")
	}
	if p.Recorder != nil {
		p.Recorder.CorrectionsRecorded(len(cs))
	}
	ex, err := corrections.TrainingExample(rec.ID, rec.DocumentType, final, len(cs))
	if err == nil {
		err = p.Store.InsertTrainingExample(ctx, &ex)
	}
	if err != nil {
		log.Warn("failed to store training example", zap.Error(err))
	}

	outcome := p.submit(ctx, rec.ID, rec.PhoneNumber, final)

	res := &ApproveResult{
		Success:          true,
		DocumentID:       rec.ID,
		CorrectionsSaved: len(cs),
		OneBillSent:      outcome.Sent,
		OneBillResponse:  outcome.Response,
	}
	if outcome.Error != "" {
		e := outcome.Error
		res.OneBillError = &e
	}
	res.Events = append(res.Events, models.NewEvent(models.EventDocumentApproved, rec.ID, map[string]any{
		"corrections_count": len(cs),
		"auto_approved":     false,
		"onebill_success":   outcome.Sent,
		"onebill_error":     nullable(outcome.Error),
		"reviewed_by":       in.ReviewerID,
	}))

	supplier := rec.Supplier()
	if len(cs) > 0 && supplier != "" && p.Learner != nil {
		tmpl, err := p.Learner.Learn(ctx, learning.Input{
			Supplier:     supplier,
			DocumentType: rec.DocumentType,
			Corrections:  cs,
			Extraction:   original,
		})
		if err != nil {
			log.Warn("template learning failed, approval stands", zap.Error(err))
			res.LearningError = err.Error()
		} else {
			res.TemplateUpdated = true
			res.Events = append(res.Events, templateEvent(rec.ID, tmpl))
		}
	}

	log.Info("document approved",
		zap.String("reviewed_by", in.ReviewerID),
		zap.Int("corrections", len(cs)),
		zap.Bool("onebill_sent", outcome.Sent),
		zap.Bool("template_updated", res.TemplateUpdated),
	)
	return res, nil
}

func templateEvent(documentID string, t *models.SupplierTemplate) models.Event {
	return models.NewEvent(models.EventTemplateUpdated, documentID, map[string]any{
		"supplier_name":     t.SupplierName,
		"document_type":     t.DocumentType,
		"total_corrections": t.AccuracyStats.TotalCorrections,
	})
}
