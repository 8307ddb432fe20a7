package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	sheetResults = "Results"
	sheetSummary = "Summary"
	sheetErrors  = "Errors"
)

// writeXLSX writes a workbook with the per-file results, the run summary
// and one row per file error.
func writeXLSX(path string, rep Report) error {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName("Sheet1", sheetResults); err != nil {
		return fmt.Errorf("prepare workbook: %w", err)
	}
	rows := make([][]any, 0, len(rep.Results))
	for _, r := range rep.Results {
		rows = append(rows, resultRow(r))
	}
	if err := fillSheet(wb, sheetResults, resultHeader, rows); err != nil {
		return err
	}

	if _, err := wb.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("add sheet %s: %w", sheetSummary, err)
	}
	summary := summaryRows(rep)
	rows = make([][]any, len(summary))
	for i, row := range summary {
		rows[i] = []any{row[0], row[1]}
	}
	if err := fillSheet(wb, sheetSummary, []string{"Metric", "Value"}, rows); err != nil {
		return err
	}

	if errs := errorRows(rep.Results); len(errs) > 0 {
		if _, err := wb.NewSheet(sheetErrors); err != nil {
			return fmt.Errorf("add sheet %s: %w", sheetErrors, err)
		}
		if err := fillSheet(wb, sheetErrors, errorHeader, errs); err != nil {
			return err
		}
	}

	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func fillSheet(wb *excelize.File, sheet string, header []string, rows [][]any) error {
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := setRow(wb, sheet, 1, head); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(wb, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(wb *excelize.File, sheet string, n int, row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("write sheet %s row %d: %w", sheet, n, err)
	}
	return nil
}
