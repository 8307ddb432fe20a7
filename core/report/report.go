package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"backup-verifier/core/reconcile"
	"backup-verifier/core/stats"
)

// Format is a report file format, selected by the report path extension.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
)

// Report is everything a writer needs from a finished run.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	Source      string
	Backup      string
	Summary     stats.GlobalSummary
	Results     []reconcile.FileResult
}

// Options controls how report files are written.
type Options struct {
	// Append adds rows to an existing CSV report instead of replacing it.
	Append bool
}

// FormatFromPath maps the extension of path to a Format.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported report format %q (use .csv, .json, .xlsx or .yaml)", filepath.Ext(path))
	}
}

// Write renders rep to path in the format selected by its extension and
// returns every file it wrote.
func Write(path string, rep Report, opts Options) ([]string, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
	}

	switch f {
	case FormatCSV:
		if err := writeResultsCSV(path, rep, opts.Append); err != nil {
			return nil, err
		}
		summaryPath := SiblingPath(path, "_summary", ".csv")
		if err := writeSummaryCSV(summaryPath, rep); err != nil {
			return nil, err
		}
		return []string{path, summaryPath}, nil
	case FormatJSON:
		return []string{path}, writeJSON(path, rep)
	case FormatYAML:
		return []string{path}, writeYAML(path, rep)
	case FormatXLSX:
		return []string{path}, writeXLSX(path, rep)
	}
	return nil, fmt.Errorf("unsupported report format %q", f)
}

// SiblingPath derives a companion file next to path: the extension is
// replaced by suffix followed by ext.
func SiblingPath(path, suffix, ext string) string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	return stem + suffix + ext
}

// DetailsPath is the default location of the mismatch detail file for a
// report written to path.
func DetailsPath(path string) string {
	return SiblingPath(path, "_mismatches", ".csv")
}

// summaryRows lists the run totals as metric/value pairs.
func summaryRows(rep Report) [][2]any {
	s := rep.Summary
	return [][2]any{
		{"Generated At", rep.GeneratedAt.Format(time.RFC3339)},
		{"Run ID", rep.RunID},
		{"Source", rep.Source},
		{"Backup", rep.Backup},
		{"Total Files", s.Files},
		{"Compared Files", s.ComparedFiles},
		{"Matched Files", s.MatchedFiles},
		{"Mismatched Files", s.MismatchedFiles},
		{"Files with Errors", s.ErroredFiles},
		{"Skipped Files", s.Skipped},
		{"Missing in Backup (files)", s.MissingBackupFiles},
		{"Missing in Source (files)", s.MissingSourceFiles},
		{"Total Source Records", s.SourceRecords},
		{"Total Backup Records", s.BackupRecords},
		{"Total Matched Records", s.Matched},
		{"Total Mismatched Records", s.Mismatched},
		{"Total Missing in Backup", s.MissingInBackup},
		{"Total Missing in Source", s.MissingInSource},
		{"Divergent Digests", s.DivergentDigests},
		{"Record Errors", s.RecordErrors},
		{"Mismatch Details", s.Details},
		{"Total Processing Time (seconds)", round2(s.Duration().Seconds())},
		{"Match Rate (%)", round2(s.MatchRate)},
		{"All Matched", s.AllMatched()},
	}
}

var resultHeader = []string{
	"file_path", "status", "format",
	"source_records", "backup_records", "matched_records", "mismatched_records",
	"missing_in_backup", "missing_in_source", "divergent_digests", "record_errors",
	"errors", "processing_time", "match_rate",
}

func resultRow(r reconcile.FileResult) []any {
	return []any{
		r.RelativePath, string(r.Status), r.Format,
		r.SourceRecords, r.BackupRecords, r.Matched, r.Mismatched,
		r.MissingInBackup, r.MissingInSource, r.DivergentDigests, r.RecordErrors,
		joinErrors(r.Errors), round2(float64(r.DurationMs) / 1000), round2(r.MatchRate),
	}
}

var errorHeader = []string{"file_path", "stage", "kind", "side", "position", "error_message"}

func errorRows(results []reconcile.FileResult) [][]any {
	var rows [][]any
	for _, r := range results {
		for _, e := range r.Errors {
			rows = append(rows, []any{r.RelativePath, e.Stage, string(e.Kind), string(e.Side), e.Position, e.Message})
		}
	}
	return rows
}

func joinErrors(errs []reconcile.FileError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// Config holds configuration for report output.
type Config struct {
	// Path is the report file; its extension selects the format. Empty
	// writes no report files.
	Path string `mapstructure:"path" default:"compare_report.csv"`
	// DetailsPath is the mismatch detail CSV. Empty derives it from Path.
	DetailsPath string `mapstructure:"details_path" default:""`
	// Append adds rows to existing CSV files instead of replacing them.
	Append bool `mapstructure:"append" default:"false"`
	// Upload copies the written files to an s3://bucket/prefix location.
	Upload string `mapstructure:"upload" default:""`
}

// Details returns the mismatch detail path, or "" when no report is
// written.
func (c Config) Details() string {
	if c.DetailsPath != "" {
		return c.DetailsPath
	}
	if c.Path == "" {
		return ""
	}
	return DetailsPath(c.Path)
}

// Validate checks that the report path has a known extension.
func (c Config) Validate() error {
	if c.Path == "" {
		return nil
	}
	_, err := FormatFromPath(c.Path)
	return err
}
