package history

import (
	"strings"
	"time"

	"backup-verifier/core/reconcile"
	"backup-verifier/core/stats"
)

// Run is one finished comparison run.
type Run struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	RunID      string    `gorm:"column:run_id;size:36;uniqueIndex" json:"run_id"`
	Source     string    `gorm:"size:1024" json:"source"`
	Backup     string    `gorm:"size:1024" json:"backup"`
	StartedAt  time.Time `gorm:"index" json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	FileCount       int `json:"files"`
	ComparedFiles   int `json:"compared_files"`
	MatchedFiles    int `json:"matched_files"`
	MismatchedFiles int `json:"mismatched_files"`
	ErroredFiles    int `json:"errored_files"`
	SkippedFiles    int `json:"skipped_files"`

	SourceRecords   int64   `json:"source_record_count"`
	BackupRecords   int64   `json:"backup_record_count"`
	Matched         int64   `json:"matched_count"`
	MissingInBackup int64   `json:"missing_in_backup_count"`
	MissingInSource int64   `json:"missing_in_source_count"`
	RecordErrors    int64   `json:"record_errors"`
	MatchRate       float64 `json:"match_rate"`
	AllMatched      bool    `json:"all_matched"`
	ReportPath      string  `gorm:"size:1024" json:"report_path,omitempty"`

	Files []FileRun `gorm:"foreignKey:RunID;references:RunID" json:"results,omitempty"`
}

// FileRun is the result of one file pair within a run.
type FileRun struct {
	ID              uint    `gorm:"primaryKey" json:"-"`
	RunID           string  `gorm:"column:run_id;size:36;index" json:"-"`
	RelativePath    string  `gorm:"size:1024" json:"relative_path"`
	Status          string  `gorm:"size:16" json:"status"`
	SourceRecords   int64   `json:"source_record_count"`
	BackupRecords   int64   `json:"backup_record_count"`
	Matched         int64   `json:"matched_count"`
	MissingInBackup int64   `json:"missing_in_backup_count"`
	MissingInSource int64   `json:"missing_in_source_count"`
	RecordErrors    int64   `json:"record_errors"`
	MatchRate       float64 `json:"match_rate"`
	DurationMs      int64   `json:"processing_duration_ms"`
	Errors          string  `gorm:"type:text" json:"errors,omitempty"`
}

// NewRun converts the outcome of a run into its history rows.
func NewRun(runID, source, backup, reportPath string, s stats.GlobalSummary, results []reconcile.FileResult) *Run {
	run := &Run{
		RunID:           runID,
		Source:          source,
		Backup:          backup,
		StartedAt:       s.StartedAt,
		FinishedAt:      s.FinishedAt,
		FileCount:       s.Files,
		ComparedFiles:   s.ComparedFiles,
		MatchedFiles:    s.MatchedFiles,
		MismatchedFiles: s.MismatchedFiles,
		ErroredFiles:    s.ErroredFiles,
		SkippedFiles:    s.Skipped,
		SourceRecords:   s.SourceRecords,
		BackupRecords:   s.BackupRecords,
		Matched:         s.Matched,
		MissingInBackup: s.MissingInBackup,
		MissingInSource: s.MissingInSource,
		RecordErrors:    s.RecordErrors,
		MatchRate:       s.MatchRate,
		AllMatched:      s.AllMatched(),
		ReportPath:      reportPath,
	}
	run.Files = make([]FileRun, len(results))
	for i, r := range results {
		msgs := make([]string, len(r.Errors))
		for j, e := range r.Errors {
			msgs[j] = e.Message
		}
		run.Files[i] = FileRun{
			RunID:           runID,
			RelativePath:    r.RelativePath,
			Status:          string(r.Status),
			SourceRecords:   r.SourceRecords,
			BackupRecords:   r.BackupRecords,
			Matched:         r.Matched,
			MissingInBackup: r.MissingInBackup,
			MissingInSource: r.MissingInSource,
			RecordErrors:    r.RecordErrors,
			MatchRate:       r.MatchRate,
			DurationMs:      r.DurationMs,
			Errors:          strings.Join(msgs, "; "),
		}
	}
	return run
}
