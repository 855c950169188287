package app

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/markdave123-py/docpipe/internal/models"
)

const reportSheet = "Run"

var reportHeaders = []string{"Stage", "Total", "Processed", "Failed", "Success Rate", "Output"}

// RenderReportXLSX lays a run report out as a one-sheet workbook.
func RenderReportXLSX(r *models.RunReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, err
	}

	meta := [][]any{
		{"Run ID", r.RunID},
		{"Started", r.StartedAt.Format(time.RFC3339)},
		{"Finished", r.FinishedAt.Format(time.RFC3339)},
		{"Error", r.Error},
	}
	row := 1
	for _, kv := range meta {
		for i, v := range kv {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(reportSheet, cell, v)
		}
		row++
	}
	row++

	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(reportSheet, cell, h)
	}
	for _, s := range r.Stages {
		row++
		vals := []any{string(s.Stage), s.Total, s.Processed, s.Failed, s.SuccessRate, s.OutputPath}
		for i, v := range vals {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(reportSheet, cell, v)
		}
	}
	_ = f.SetColWidth(reportSheet, "A", "A", 26)
	_ = f.SetColWidth(reportSheet, "F", "F", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Pipeline) exportReport(ctx context.Context, r *models.RunReport) (string, error) {
	data, err := RenderReportXLSX(r)
	if err != nil {
		return "", err
	}
	return p.storage.WriteFile(ctx, p.reportPath(r.RunID), data)
}
