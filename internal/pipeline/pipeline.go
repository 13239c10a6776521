// Package pipeline runs ingestion, approval and template learning end to end.
// Pipelines return the events they produce; delivering them is the caller's job.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/ai"
	"github.com/Onebillie/parsetastic/internal/learning"
	"github.com/Onebillie/parsetastic/internal/models"
	"github.com/Onebillie/parsetastic/internal/onebill"
)

// Extractor is the extraction oracle.
type Extractor interface {
	Extract(ctx context.Context, file []byte, mimeType string, hints []models.SupplierTemplate) (*ai.Extraction, error)
}

// Validator produces the combined local and oracle verdict. It never fails.
type Validator interface {
	Run(ctx context.Context, doc *models.Document, raw map[string]any) *models.ValidationResult
}

// Store is the persistence the pipelines need. *db.Store satisfies it.
type Store interface {
	InsertDocument(ctx context.Context, d *models.DocumentRecord) error
	GetDocument(ctx context.Context, id string) (*models.DocumentRecord, error)
	ApproveDocument(ctx context.Context, id string, extracted map[string]any, reviewer string) (time.Time, error)
	RecordBillingOutcome(ctx context.Context, id string, o models.BillingOutcome) error
	InsertCorrections(ctx context.Context, cs []models.Correction) error
	InsertTrainingExample(ctx context.Context, ex *models.TrainingExample) error
	ListTemplates(ctx context.Context, supplier string) ([]models.SupplierTemplate, error)
}

// FileStore keeps the uploaded file.
type FileStore interface {
	Upload(ctx context.Context, fileName string, data []byte, contentType string) (string, error)
}

// Biller submits approved bills downstream.
type Biller interface {
	Submit(ctx context.Context, phone string, payload *onebill.Payload) (json.RawMessage, error)
}

// Learner folds corrections into supplier templates.
type Learner interface {
	Learn(ctx context.Context, in learning.Input) (*models.SupplierTemplate, error)
}

// Recorder receives pipeline metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	DocumentIngested(requiresReview bool, reasons []string, overall float64)
	BillingSubmission(err error)
	CorrectionsRecorded(n int)
}

// Deps are the pipeline's collaborators. Files and Recorder may be nil.
type Deps struct {
	Extractor   Extractor
	Validator   Validator
	Store       Store
	Files       FileStore
	Biller      Biller
	Transformer *onebill.Transformer
	Learner     Learner
	Recorder    Recorder
}

// Pipeline holds the collaborators and the gating thresholds.
type Pipeline struct {
	Deps
	thresholds models.Thresholds
	now        func() time.Time
}

// New builds a pipeline. Zero thresholds take their defaults.
func New(deps Deps, t models.Thresholds) *Pipeline {
	if deps.Transformer == nil {
		deps.Transformer = onebill.NewTransformer(nil)
	}
	return &Pipeline{Deps: deps, thresholds: t.WithDefaults(), now: time.Now}
}

// submit transforms and sends one extraction to the billing API and stores the outcome.
// Failures never propagate: they are recorded on the document and returned in the outcome.
func (p *Pipeline) submit(ctx context.Context, documentID, phone string, extracted map[string]any) models.BillingOutcome {
	out := models.BillingOutcome{AttemptAt: p.now().UTC()}

	payload, err := p.Transformer.TransformRaw(extracted)
	if err == nil {
		var resp json.RawMessage
		resp, err = p.Biller.Submit(ctx, phone, payload)
		if err == nil {
			out.Sent = true
			out.Response = resp
		}
	}
	if err != nil {
		out.Error = err.Error()
		logFor(documentID).Warn("billing submission failed", zap.Error(err))
	}
	if p.Recorder != nil {
		p.Recorder.BillingSubmission(err)
	}
	if err := p.Store.RecordBillingOutcome(ctx, documentID, out); err != nil {
		logFor(documentID).Error("failed to record billing outcome", zap.Error(err))
	}
	return out
}

func logFor(documentID string) *zap.Logger {
	return zap.L().With(zap.String("component", "pipeline"), zap.String("document_id", documentID))
}
