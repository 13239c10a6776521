// Package export builds the XLSX workbook reviewers hand to retraining.
package export

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/models"
)

// Sheet names, in workbook order.
const (
	SheetExamples    = "Training Examples"
	SheetCorrections = "Corrections"
	SheetTemplates   = "Supplier Templates"
)

// groundTruthLimit keeps cells under Excel's 32767 character cap.
const groundTruthLimit = 32000

// Source is where the workbook rows come from. *db.Store satisfies it.
type Source interface {
	ListTrainingExamples(ctx context.Context) ([]models.TrainingExample, error)
	ListCorrections(ctx context.Context) ([]models.Correction, error)
	ListTemplates(ctx context.Context, supplier string) ([]models.SupplierTemplate, error)
}

// Service produces training workbooks.
type Service struct {
	src Source
}

func NewService(src Source) *Service {
	return &Service{src: src}
}

// TrainingXLSX returns every training example, correction and template as one workbook.
func (s *Service) TrainingXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	examples, err := s.src.ListTrainingExamples(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "export: training examples")
	}
	cs, err := s.src.ListCorrections(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "export: corrections")
	}
	templates, err := s.src.ListTemplates(ctx, "")
	if err != nil {
		return nil, eris.Wrap(err, "export: templates")
	}

	f := excelize.NewFile()
	defer f.Close()

	// excelize starts with "Sheet1"; rename it rather than leave an empty tab.
	if err := f.SetSheetName("Sheet1", SheetExamples); err != nil {
		return nil, eris.Wrap(err, "export: rename sheet")
	}
	for _, name := range []string{SheetCorrections, SheetTemplates} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, eris.Wrapf(err, "export: new sheet %s", name)
		}
	}

	rows := make([][]any, 0, len(examples))
	for _, ex := range examples {
		rows = append(rows, []any{
			ex.ID, ex.DocumentID, ex.DocumentType, ex.CorrectionsLen, ex.Notes,
			stamp(ex.CreatedAt), truncate(string(ex.GroundTruth), groundTruthLimit),
		})
	}
	if err := writeSheet(f, SheetExamples,
		[]string{"ID", "Document ID", "Document Type", "Corrections", "Notes", "Created At", "Ground Truth"},
		rows, []float64{38, 38, 20, 12, 32, 22, 80},
	); err != nil {
		return nil, err
	}

	rows = make([][]any, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, []any{
			c.DocumentID, c.FieldPath, c.OriginalValue, c.CorrectedValue, c.ConfidenceBefore, stamp(c.CreatedAt),
		})
	}
	if err := writeSheet(f, SheetCorrections,
		[]string{"Document ID", "Field Path", "Original Value", "Corrected Value", "Confidence Before", "Created At"},
		rows, []float64{38, 40, 28, 28, 18, 22},
	); err != nil {
		return nil, err
	}

	rows = make([][]any, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, []any{
			t.SupplierName, t.DocumentType, t.AccuracyStats.TotalCorrections,
			t.AccuracyStats.AvgConfidenceBefore, stamp(t.LastUpdated),
		})
	}
	if err := writeSheet(f, SheetTemplates,
		[]string{"Supplier", "Document Type", "Corrections (last batch)", "Avg Confidence Before", "Last Updated"},
		rows, []float64{28, 20, 24, 22, 22},
	); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, eris.Wrap(err, "export: write xlsx")
	}

	zap.L().Info("training export written",
		zap.Int("examples", len(examples)),
		zap.Int("corrections", len(cs)),
		zap.Int("templates", len(templates)),
		zap.Duration("duration", time.Since(start)),
	)
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any, widths []float64) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return eris.Wrapf(err, "export: %s header", sheet)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return eris.Wrapf(err, "export: %s row %d", sheet, r+2)
			}
		}
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}
	return nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
