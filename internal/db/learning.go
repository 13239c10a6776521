package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/Onebillie/parsetastic/internal/models"
)

// InsertCorrections stores a review's corrections in one transaction. Stored corrections are never updated.
func (s *Store) InsertCorrections(ctx context.Context, cs []models.Correction) error {
	if len(cs) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "db: corrections: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := s.now().UTC()
	for i := range cs {
		c := &cs[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO document_corrections (
				id, document_id, field_path, original_value, corrected_value, confidence_before, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, c.DocumentID, c.FieldPath, c.OriginalValue, c.CorrectedValue, c.ConfidenceBefore, c.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "db: insert correction %s", c.FieldPath)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "db: corrections: commit")
	}
	return nil
}

const correctionColumns = `id, document_id, field_path, original_value, corrected_value, confidence_before, created_at`

// ListCorrections returns every stored correction, oldest first.
func (s *Store) ListCorrections(ctx context.Context) ([]models.Correction, error) {
	return s.queryCorrections(ctx, `SELECT `+correctionColumns+` FROM document_corrections ORDER BY created_at`)
}

// DocumentCorrections returns one document's corrections, newest first.
func (s *Store) DocumentCorrections(ctx context.Context, documentID string) ([]models.Correction, error) {
	return s.queryCorrections(ctx, `SELECT `+correctionColumns+` FROM document_corrections
		WHERE document_id = $1 ORDER BY created_at DESC`, documentID)
}

func (s *Store) queryCorrections(ctx context.Context, query string, args ...any) ([]models.Correction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "db: list corrections")
	}
	defer rows.Close()

	out := []models.Correction{}
	for rows.Next() {
		var c models.Correction
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.FieldPath, &c.OriginalValue, &c.CorrectedValue,
			&c.ConfidenceBefore, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "db: scan correction")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "db: iterate corrections")
}

// InsertTrainingExample tags a reviewed payload for later retraining.
func (s *Store) InsertTrainingExample(ctx context.Context, ex *models.TrainingExample) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO training_examples (id, document_id, document_type, example_data, notes, corrections_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		ex.ID, ex.DocumentID, ex.DocumentType, []byte(ex.GroundTruth), ex.Notes, ex.CorrectionsLen,
	).Scan(&ex.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "db: insert training example for %s", ex.DocumentID)
	}
	return nil
}

// ListTrainingExamples returns every training example, newest first.
func (s *Store) ListTrainingExamples(ctx context.Context) ([]models.TrainingExample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(document_id::text, ''), document_type, example_data, notes, corrections_count, created_at
		FROM training_examples ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "db: list training examples")
	}
	defer rows.Close()

	out := []models.TrainingExample{}
	for rows.Next() {
		var ex models.TrainingExample
		var data []byte
		if err := rows.Scan(&ex.ID, &ex.DocumentID, &ex.DocumentType, &data, &ex.Notes,
			&ex.CorrectionsLen, &ex.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "db: scan training example")
		}
		ex.GroundTruth = json.RawMessage(data)
		out = append(out, ex)
	}
	return out, eris.Wrap(rows.Err(), "db: iterate training examples")
}

const templateColumns = `id, supplier_name, document_type, template_data, accuracy_stats, created_at, last_updated`

// GetTemplate returns nil, nil when the (supplier, document type) key has no template yet.
func (s *Store) GetTemplate(ctx context.Context, supplier, documentType string) (*models.SupplierTemplate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+templateColumns+`
		FROM supplier_templates WHERE supplier_name = $1 AND document_type = $2`, supplier, documentType)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "db: get template %s/%s", supplier, documentType)
	}
	return t, nil
}

// UpsertTemplate writes the template keyed by (supplier, document type).
func (s *Store) UpsertTemplate(ctx context.Context, t *models.SupplierTemplate) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	data, err := json.Marshal(t.TemplateData)
	if err != nil {
		return eris.Wrap(err, "db: marshal template data")
	}
	stats, err := json.Marshal(t.AccuracyStats)
	if err != nil {
		return eris.Wrap(err, "db: marshal accuracy stats")
	}
	if t.LastUpdated.IsZero() {
		t.LastUpdated = s.now().UTC()
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO supplier_templates (id, supplier_name, document_type, template_data, accuracy_stats, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (supplier_name, document_type) DO UPDATE SET
			template_data = EXCLUDED.template_data,
			accuracy_stats = EXCLUDED.accuracy_stats,
			last_updated = EXCLUDED.last_updated
		RETURNING id, created_at`,
		t.ID, t.SupplierName, t.DocumentType, data, stats, t.LastUpdated,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "db: upsert template %s/%s", t.SupplierName, t.DocumentType)
	}
	return nil
}

// ListTemplates returns templates for one supplier, or all of them when supplier is empty.
func (s *Store) ListTemplates(ctx context.Context, supplier string) ([]models.SupplierTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM supplier_templates`
	args := []any{}
	if supplier != "" {
		query += ` WHERE supplier_name = $1`
		args = append(args, supplier)
	}
	query += ` ORDER BY last_updated DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "db: list templates")
	}
	defer rows.Close()

	out := []models.SupplierTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "db: scan template")
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "db: iterate templates")
}

func scanTemplate(row pgx.Row) (*models.SupplierTemplate, error) {
	var t models.SupplierTemplate
	var data, stats []byte
	if err := row.Scan(&t.ID, &t.SupplierName, &t.DocumentType, &data, &stats, &t.CreatedAt, &t.LastUpdated); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &t.TemplateData); err != nil {
			return nil, eris.Wrap(err, "unmarshal template_data")
		}
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &t.AccuracyStats); err != nil {
			return nil, eris.Wrap(err, "unmarshal accuracy_stats")
		}
	}
	return &t, nil
}
