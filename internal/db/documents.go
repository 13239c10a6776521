package db

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/Onebillie/parsetastic/internal/models"
)

const documentColumns = `id, file_name, file_type, file_url, phone_number, status, document_type,
	classification_confidence, parsed_data, confidence_scores, requires_review, review_reasons,
	approved, approved_at, reviewed_by, onebill_response, onebill_sent_at, onebill_error,
	onebill_attempted_at, created_at, updated_at`

// MaxListLimit caps a single page of documents.
const MaxListLimit = 500

// InsertDocument stores a freshly ingested document and fills its id and timestamps.
func (s *Store) InsertDocument(ctx context.Context, d *models.DocumentRecord) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	parsed, err := json.Marshal(d.ParsedData)
	if err != nil {
		return eris.Wrap(err, "db: marshal parsed data")
	}
	scores, err := json.Marshal(d.ConfidenceScores)
	if err != nil {
		return eris.Wrap(err, "db: marshal confidence scores")
	}
	reasons := d.ReviewReasons
	if reasons == nil {
		reasons = []string{}
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO documents (
			id, file_name, file_type, file_url, phone_number, status, document_type,
			classification_confidence, parsed_data, confidence_scores, requires_review,
			review_reasons, approved, approved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		d.ID, d.FileName, d.FileType, d.FileURL, d.PhoneNumber, d.Status, d.DocumentType,
		d.ClassificationConfidence, parsed, scores, d.RequiresReview,
		reasons, d.Approved, d.ApprovedAt,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "db: insert document %s", d.ID)
	}
	return nil
}

// GetDocument loads one document. A missing row is ErrDocumentNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.DocumentRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.WrapError(models.ErrDocumentNotFound, "db: get document "+id, err)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "db: get document %s", id)
	}
	return d, nil
}

// ListDocuments returns one page, newest first, plus the total count for the filter.
func (s *Store) ListDocuments(ctx context.Context, f models.DocumentFilter) ([]models.DocumentRecord, int, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := ""
	args := []any{}
	if f.Status != "" && f.Status != "all" {
		where = " WHERE status = $1"
		args = append(args, f.Status)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "db: count documents")
	}

	n := len(args)
	query := `SELECT ` + documentColumns + ` FROM documents` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := s.pool.Query(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "db: list documents")
	}
	defer rows.Close()

	docs := []models.DocumentRecord{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "db: scan document")
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "db: iterate documents")
	}
	return docs, total, nil
}

// ApproveDocument marks a document approved and stores the reviewed extraction in place of the original.
func (s *Store) ApproveDocument(ctx context.Context, id string, extracted map[string]any, reviewer string) (time.Time, error) {
	at := s.now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET
			parsed_data = jsonb_set(parsed_data, '{extracted}', $2::jsonb),
			status = $3, approved = TRUE, approved_at = $4, requires_review = FALSE,
			reviewed_by = $5, updated_at = $4
		WHERE id = $1`,
		id, mustJSON(extracted), models.DocumentApproved, at, reviewer,
	)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "db: approve document %s", id)
	}
	if tag.RowsAffected() == 0 {
		return time.Time{}, models.WrapError(models.ErrDocumentNotFound, "db: approve document "+id, eris.New("no rows updated"))
	}
	return at, nil
}

// RecordBillingOutcome stores the billing API's answer, or its failure, on the document.
func (s *Store) RecordBillingOutcome(ctx context.Context, id string, o models.BillingOutcome) error {
	var err error
	if o.Sent {
		_, err = s.pool.Exec(ctx, `
			UPDATE documents SET onebill_response = $2, onebill_sent_at = $3, onebill_error = '',
				onebill_attempted_at = $3, updated_at = $3
			WHERE id = $1`,
			id, []byte(o.Response), o.AttemptAt,
		)
	} else {
		_, err = s.pool.Exec(ctx, `
			UPDATE documents SET onebill_error = $2, onebill_attempted_at = $3, updated_at = $3
			WHERE id = $1`,
			id, o.Error, o.AttemptAt,
		)
	}
	if err != nil {
		return eris.Wrapf(err, "db: record billing outcome for %s", id)
	}
	return nil
}

func scanDocument(row pgx.Row) (*models.DocumentRecord, error) {
	var d models.DocumentRecord
	var parsed, scores, response []byte
	err := row.Scan(
		&d.ID, &d.FileName, &d.FileType, &d.FileURL, &d.PhoneNumber, &d.Status, &d.DocumentType,
		&d.ClassificationConfidence, &parsed, &scores, &d.RequiresReview, &d.ReviewReasons,
		&d.Approved, &d.ApprovedAt, &d.ReviewedBy, &response, &d.OneBillSentAt, &d.OneBillError,
		&d.OneBillAttemptedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(parsed) > 0 {
		if err := json.Unmarshal(parsed, &d.ParsedData); err != nil {
			return nil, eris.Wrap(err, "unmarshal parsed_data")
		}
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &d.ConfidenceScores); err != nil {
			return nil, eris.Wrap(err, "unmarshal confidence_scores")
		}
	}
	if len(response) > 0 {
		d.OneBillResponse = json.RawMessage(response)
	}
	return &d, nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
