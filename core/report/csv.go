package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// utf8BOM lets spreadsheet tools detect the encoding of CSV files.
const utf8BOM = "\ufeff"

// writeResultsCSV writes one row per file result. With appendRows set and
// an existing non-empty file, rows are added without repeating the header.
func writeResultsCSV(path string, rep Report, appendRows bool) error {
	f, fresh, err := openCSV(path, appendRows)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(resultHeader); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	for _, r := range rep.Results {
		if err := w.Write(stringify(resultRow(r))); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return flushCSV(w, f, path)
}

func writeSummaryCSV(path string, rep Report) error {
	f, _, err := openCSV(path, false)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Metric", "Value"}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, row := range summaryRows(rep) {
		if err := w.Write([]string{row[0].(string), cell(row[1])}); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return flushCSV(w, f, path)
}

// openCSV opens path for writing. fresh is true when the caller must write
// a header, in which case the BOM has already been written.
func openCSV(path string, appendRows bool) (f *os.File, fresh bool, err error) {
	if appendRows {
		if info, statErr := os.Stat(path); statErr == nil && info.Size() > 0 {
			f, err = os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, false, fmt.Errorf("open %s: %w", path, err)
			}
			return f, false, nil
		} else if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
			return nil, false, fmt.Errorf("stat %s: %w", path, statErr)
		}
	}

	f, err = os.Create(path)
	if err != nil {
		return nil, false, fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.WriteString(f, utf8BOM); err != nil {
		f.Close()
		return nil, false, fmt.Errorf("write %s: %w", path, err)
	}
	return f, true, nil
}

func flushCSV(w *csv.Writer, f *os.File, path string) error {
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func stringify(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = cell(v)
	}
	return out
}

func cell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
