package learning

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Onebillie/parsetastic/internal/models"
)

type memStore struct {
	templates map[string]*models.SupplierTemplate
	upserts   int
	getErr    error
}

func newMemStore() *memStore {
	return &memStore{templates: map[string]*models.SupplierTemplate{}}
}

func (m *memStore) GetTemplate(_ context.Context, supplier, docType string) (*models.SupplierTemplate, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	t, ok := m.templates[supplier+"|"+docType]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) UpsertTemplate(_ context.Context, t *models.SupplierTemplate) error {
	m.upserts++
	cp := *t
	m.templates[t.SupplierName+"|"+t.DocumentType] = &cp
	return nil
}

type fakePatterns struct {
	out  models.TemplateData
	err  error
	seen []models.PatternRequest
}

func (f *fakePatterns) Synthesize(_ context.Context, req models.PatternRequest) (models.TemplateData, error) {
	f.seen = append(f.seen, req)
	return f.out, f.err
}

func batch(confs ...float64) []models.Correction {
	paths := []string{"bills[0].account.mprn", "bills[0].totals.total_due", "bills[0].account.mprn"}
	out := make([]models.Correction, 0, len(confs))
	for i, c := range confs {
		out = append(out, models.Correction{FieldPath: paths[i%len(paths)], ConfidenceBefore: c})
	}
	return out
}

func fixedLearner(store Store, oracle PatternOracle) *TemplateLearner {
	l := NewTemplateLearner(store, oracle)
	l.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestLearn_CreatesTemplate(t *testing.T) {
	raw := json.RawMessage(`{"field_patterns":{"mprn":"10\\d{9}"},"novel_key":true}`)
	var data models.TemplateData
	require.NoError(t, json.Unmarshal(raw, &data))

	store := newMemStore()
	l := fixedLearner(store, &fakePatterns{out: data})

	tmpl, err := l.Learn(context.Background(), Input{
		Supplier:     "Electric Ireland",
		DocumentType: "electricity_bill",
		Corrections:  batch(0.8, 0.9),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, tmpl.AccuracyStats.TotalCorrections)
	assert.InDelta(t, 0.85, tmpl.AccuracyStats.AvgConfidenceBefore, 1e-9)
	assert.Nil(t, tmpl.AccuracyStats.PreviousAvgConfidenceBefore)
	assert.Equal(t, map[string]int{"bills[0].account.mprn": 1, "bills[0].totals.total_due": 1}, tmpl.AccuracyStats.CorrectionFrequency)
	assert.Equal(t, 1, store.upserts)

	out, err := json.Marshal(tmpl.TemplateData)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out), "oracle output is stored verbatim")
}

func TestLearn_UpdatesExistingTemplate(t *testing.T) {
	store := newMemStore()
	store.templates["Flogas|gas_bill"] = &models.SupplierTemplate{
		SupplierName: "Flogas",
		DocumentType: "gas_bill",
		AccuracyStats: models.AccuracyStats{
			TotalCorrections:    4,
			AvgConfidenceBefore: 0.5,
			CorrectionFrequency: map[string]int{"bills[0].account.mprn": 3},
		},
	}
	patterns := &fakePatterns{}
	l := fixedLearner(store, patterns)

	tmpl, err := l.Learn(context.Background(), Input{Supplier: "Flogas", DocumentType: "gas_bill", Corrections: batch(0.9, 0.7, 0.8)})
	require.NoError(t, err)

	stats := tmpl.AccuracyStats
	assert.Equal(t, 5, stats.CorrectionFrequency["bills[0].account.mprn"])
	assert.Equal(t, 1, stats.CorrectionFrequency["bills[0].totals.total_due"])
	assert.Equal(t, 3, stats.TotalCorrections)
	assert.InDelta(t, 0.8, stats.AvgConfidenceBefore, 1e-9)
	require.NotNil(t, stats.PreviousAvgConfidenceBefore)
	assert.Equal(t, 0.5, *stats.PreviousAvgConfidenceBefore)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), stats.LastUpdated)
	require.Len(t, patterns.seen, 1)
	assert.Len(t, patterns.seen[0].Corrections, 3)
}

func TestLearn_OracleFailureFailsLoudly(t *testing.T) {
	store := newMemStore()
	l := fixedLearner(store, &fakePatterns{err: errors.New("model overloaded")})

	_, err := l.Learn(context.Background(), Input{Supplier: "SSE Airtricity", Corrections: batch(0.9)})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrTemplateLearning))
	assert.Zero(t, store.upserts)
}

func TestLearn_RejectsBadInput(t *testing.T) {
	l := fixedLearner(newMemStore(), &fakePatterns{})

	_, err := l.Learn(context.Background(), Input{Corrections: batch(0.9)})
	assert.True(t, models.IsKind(err, models.ErrInvalidInput))

	_, err = l.Learn(context.Background(), Input{Supplier: "Energia"})
	assert.True(t, models.IsKind(err, models.ErrInvalidInput))
}

func TestLearn_StoreError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("db down")
	_, err := fixedLearner(store, &fakePatterns{}).Learn(context.Background(), Input{Supplier: "Energia", Corrections: batch(0.9)})
	assert.Error(t, err)
}

func TestUpdateStats_FrequenciesNeverDecrease(t *testing.T) {
	prev := models.AccuracyStats{CorrectionFrequency: map[string]int{"a": 2, "b": 7}}
	next := UpdateStats(prev, []models.Correction{{FieldPath: "a"}}, time.Now())
	assert.Equal(t, 3, next.CorrectionFrequency["a"])
	assert.Equal(t, 7, next.CorrectionFrequency["b"])
	assert.Equal(t, 2, prev.CorrectionFrequency["a"], "input is not mutated")
}
