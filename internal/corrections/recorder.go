// Package corrections captures reviewer edits as an audit trail of per-field corrections.
package corrections

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/Onebillie/parsetastic/internal/extraction"
	"github.com/Onebillie/parsetastic/internal/models"
)

// Edit is one change a reviewer submitted. The same path may appear several times in a session.
type Edit struct {
	FieldPath        string   `json:"field_path"`
	OriginalValue    any      `json:"original_value"`
	CorrectedValue   any      `json:"corrected_value"`
	ConfidenceBefore *float64 `json:"confidence_before,omitempty"`
}

type entry struct {
	path       string
	original   any
	corrected  any
	confidence float64
}

// Session collects the edits of one approval. Later edits of a path replace earlier ones,
// but the original value and confidence are those read the first time the path was touched.
type Session struct {
	documentID string
	original   map[string]any
	order      []string
	entries    map[string]*entry
}

// NewSession starts a review session over the stored extraction.
func NewSession(documentID string, original map[string]any) *Session {
	return &Session{
		documentID: documentID,
		original:   original,
		entries:    map[string]*entry{},
	}
}

// Record notes an edit.
func (s *Session) Record(e Edit) error {
	if e.FieldPath == "" {
		return eris.Wrap(models.ErrInvalidInput, "corrections: edit without field_path")
	}
	if existing, ok := s.entries[e.FieldPath]; ok {
		existing.corrected = e.CorrectedValue
		return nil
	}

	en := &entry{path: e.FieldPath, original: e.OriginalValue, corrected: e.CorrectedValue}
	if v, ok := extraction.Get(s.original, e.FieldPath); ok {
		en.original = v
	}
	if c, ok := extraction.Confidence(s.original, e.FieldPath); ok {
		en.confidence = c
	} else if e.ConfidenceBefore != nil {
		en.confidence = *e.ConfidenceBefore
	}
	s.entries[e.FieldPath] = en
	s.order = append(s.order, e.FieldPath)
	return nil
}

// RecordAll records edits in order.
func (s *Session) RecordAll(edits []Edit) error {
	for _, e := range edits {
		if err := s.Record(e); err != nil {
			return err
		}
	}
	return nil
}

// Corrections returns one correction per changed path, in first-touch order.
// Paths whose final value equals the original produce nothing.
func (s *Session) Corrections() []models.Correction {
	out := make([]models.Correction, 0, len(s.order))
	for _, path := range s.order {
		en := s.entries[path]
		before := extraction.Stringify(en.original)
		after := extraction.Stringify(en.corrected)
		if before == after {
			continue
		}
		out = append(out, models.Correction{
			DocumentID:       s.documentID,
			FieldPath:        path,
			OriginalValue:    before,
			CorrectedValue:   after,
			ConfidenceBefore: en.confidence,
		})
	}
	return out
}

// Apply writes the final edit values into a copy of the original extraction.
func (s *Session) Apply() (map[string]any, error) {
	out := extraction.Clone(s.original)
	if out == nil {
		out = map[string]any{}
	}
	for _, path := range s.order {
		if err := extraction.Set(out, path, s.entries[path].corrected); err != nil {
			return nil, eris.Wrapf(err, "corrections: apply %s", path)
		}
	}
	return out, nil
}

// RecordEdited records every leaf of an edited copy whose value differs from the original.
// Leaves the edited copy dropped are not treated as edits. Explicit edits recorded afterwards
// replace the corrected value on the same path.
func (s *Session) RecordEdited(edited map[string]any) error {
	for _, path := range extraction.LeafPaths(edited) {
		after, _ := extraction.Get(edited, path)
		before, _ := extraction.Get(s.original, path)
		if extraction.Stringify(before) == extraction.Stringify(after) {
			continue
		}
		if err := s.Record(Edit{FieldPath: path, CorrectedValue: after}); err != nil {
			return err
		}
	}
	return nil
}

// TrainingExample tags the reviewed payload for later bulk retraining.
func TrainingExample(documentID, documentType string, reviewed map[string]any, corrections int) (models.TrainingExample, error) {
	payload, err := json.Marshal(reviewed)
	if err != nil {
		return models.TrainingExample{}, eris.Wrap(err, "corrections: marshal ground truth")
	}
	return models.TrainingExample{
		DocumentID:     documentID,
		DocumentType:   documentType,
		GroundTruth:    payload,
		Notes:          fmt.Sprintf("Corrections applied: %d fields", corrections),
		CorrectionsLen: corrections,
	}, nil
}
