package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/confidence"
	"github.com/Onebillie/parsetastic/internal/extraction"
	"github.com/Onebillie/parsetastic/internal/models"
	"github.com/Onebillie/parsetastic/internal/review"
)

// IngestInput is one uploaded bill.
type IngestInput struct {
	File      []byte
	FileName  string
	MIMEType  string
	Phone     string
	Autopilot bool
}

// IngestResult is what ingestion decided about the bill.
type IngestResult struct {
	Success           bool                     `json:"success"`
	DocumentID        string                   `json:"document_id"`
	RequiresReview    bool                     `json:"requires_review"`
	ReviewReasons     []string                 `json:"review_reasons"`
	Classification    models.Classification    `json:"classification"`
	OverallConfidence float64                  `json:"overall_confidence"`
	CriticalFieldsLow []models.CriticalField   `json:"critical_fields_low,omitempty"`
	Validation        *models.ValidationResult `json:"validation"`
	FileURL           string                   `json:"file_url"`
	Extracted         map[string]any           `json:"extracted_data"`
	Billing           *models.BillingOutcome   `json:"onebill,omitempty"`
	Events            []models.Event           `json:"-"`
}

// Ingest extracts, scores, validates and gates one bill, then persists it.
// Auto approved bills are submitted to billing straight away.
func (p *Pipeline) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if len(in.File) == 0 || in.Phone == "" {
		return nil, models.WrapError(models.ErrInvalidInput, "pipeline: ingest", eris.New("file and phone number are required"))
	}
	start := time.Now()
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("file_name", in.FileName))

	var fileURL string
	if p.Files != nil {
		url, err := p.Files.Upload(ctx, in.FileName, in.File, in.MIMEType)
		if err != nil {
			log.Warn("file upload failed, continuing without a stored copy", zap.Error(err))
		}
		fileURL = url
	}

	hints, err := p.Store.ListTemplates(ctx, "")
	if err != nil {
		log.Warn("could not load supplier templates", zap.Error(err))
		hints = nil
	}

	ext, err := p.Extractor.Extract(ctx, in.File, in.MIMEType, hints)
	if err != nil {
		return nil, err
	}

	doc, err := extraction.Normalize(ext.Raw)
	if err != nil {
		log.Warn("extraction has no recognised bill layout", zap.Error(err))
		doc = &models.Document{}
	}
	doc.Classification = ext.Classification

	overall := confidence.Overall(doc)
	low := confidence.CheckCritical(doc, p.thresholds.Critical)
	validation := p.Validator.Run(ctx, doc, ext.Raw)

	decision := review.Decide(review.GateInput{
		OverallConfidence: overall,
		CriticalLow:       low,
		Validation:        validation,
		Autopilot:         in.Autopilot,
	}, p.thresholds.Overall)

	rec := &models.DocumentRecord{
		FileName:                 in.FileName,
		FileType:                 in.MIMEType,
		FileURL:                  fileURL,
		PhoneNumber:              in.Phone,
		Status:                   review.Status(decision),
		DocumentType:             ext.Classification.DocumentType(),
		ClassificationConfidence: overall,
		ParsedData: models.ParsedData{
			Classification: ext.Classification,
			Extracted:      ext.Raw,
			Validation:     validation,
		},
		ConfidenceScores: models.ConfidenceScores{
			Overall:           overall,
			CriticalFieldsOK:  decision.CriticalFieldsOK,
			CriticalFieldsLow: low,
		},
		RequiresReview: decision.RequiresReview,
		ReviewReasons:  decision.Reasons,
		Approved:       !decision.RequiresReview,
	}
	if rec.Approved {
		at := p.now().UTC()
		rec.ApprovedAt = &at
	}
	if err := p.Store.InsertDocument(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "pipeline: store document")
	}
	if p.Recorder != nil {
		p.Recorder.DocumentIngested(decision.RequiresReview, decision.Reasons, overall)
	}

	res := &IngestResult{
		Success:           true,
		DocumentID:        rec.ID,
		RequiresReview:    decision.RequiresReview,
		ReviewReasons:     decision.Reasons,
		Classification:    ext.Classification,
		OverallConfidence: overall,
		CriticalFieldsLow: low,
		Validation:        validation,
		FileURL:           fileURL,
		Extracted:         ext.Raw,
	}
	res.Events = append(res.Events, models.NewEvent(models.EventDocumentCreated, rec.ID, map[string]any{
		"file_name":          in.FileName,
		"document_type":      rec.DocumentType,
		"supplier":           ext.Classification.SupplierName,
		"requires_review":    decision.RequiresReview,
		"overall_confidence": overall,
	}))

	if decision.RequiresReview {
		issues := []models.ValidationIssue{}
		if validation != nil && validation.Issues != nil {
			issues = validation.Issues
		}
		res.Events = append(res.Events, models.NewEvent(models.EventDocumentReviewNeeded, rec.ID, map[string]any{
			"overall_confidence": overall,
			"validation_issues":  issues,
			"review_reasons":     decision.Reasons,
		}))
	} else {
		outcome := p.submit(ctx, rec.ID, in.Phone, ext.Raw)
		res.Billing = &outcome
		res.Events = append(res.Events, models.NewEvent(models.EventDocumentApproved, rec.ID, map[string]any{
			"auto_approved":      true,
			"overall_confidence": overall,
			"onebill_success":    outcome.Sent,
			"onebill_error":      nullable(outcome.Error),
		}))
	}

	log.Info("document ingested",
		zap.String("document_id", rec.ID),
		zap.String("supplier", ext.Classification.SupplierName),
		zap.Float64("overall_confidence", overall),
		zap.Bool("requires_review", decision.RequiresReview),
		zap.Strings("review_reasons", decision.Reasons),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
