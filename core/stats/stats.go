package stats

import (
	"sort"
	"sync"
	"time"

	"backup-verifier/core/reconcile"

	"go.uber.org/zap"
)

// FailedPair is a file pair that could not be fully compared.
type FailedPair struct {
	RelativePath string                `json:"file_path" yaml:"file_path"`
	Status       reconcile.Status      `json:"status" yaml:"status"`
	Errors       []reconcile.FileError `json:"errors" yaml:"errors"`
}

// GlobalSummary holds the run-wide totals.
type GlobalSummary struct {
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Files              int `json:"files" yaml:"files"`
	ComparedFiles      int `json:"compared_files" yaml:"compared_files"`
	MatchedFiles       int `json:"matched_files" yaml:"matched_files"`
	MismatchedFiles    int `json:"mismatched_files" yaml:"mismatched_files"`
	ErroredFiles       int `json:"errored_files" yaml:"errored_files"`
	Skipped            int `json:"skipped_files" yaml:"skipped_files"`
	Cancelled          int `json:"cancelled_files" yaml:"cancelled_files"`
	MissingBackupFiles int `json:"missing_backup_files" yaml:"missing_backup_files"`
	MissingSourceFiles int `json:"missing_source_files" yaml:"missing_source_files"`

	SourceRecords    int64 `json:"source_record_count" yaml:"source_record_count"`
	BackupRecords    int64 `json:"backup_record_count" yaml:"backup_record_count"`
	Matched          int64 `json:"matched_count" yaml:"matched_count"`
	Mismatched       int64 `json:"mismatched_count" yaml:"mismatched_count"`
	MissingInBackup  int64 `json:"missing_in_backup_count" yaml:"missing_in_backup_count"`
	MissingInSource  int64 `json:"missing_in_source_count" yaml:"missing_in_source_count"`
	DivergentDigests int64 `json:"divergent_digests" yaml:"divergent_digests"`
	RecordErrors     int64 `json:"record_errors" yaml:"record_errors"`
	Details          int64 `json:"mismatch_details" yaml:"mismatch_details"`

	// MatchRate is the sum of matched over the sum of source records of
	// compared files, as a percentage.
	MatchRate float64      `json:"match_rate" yaml:"match_rate"`
	Failed    []FailedPair `json:"failed" yaml:"failed"`
}

// AllMatched reports whether the backup is a faithful copy: every record
// matched, no file is missing on either side and every pair was compared
// without error.
func (s GlobalSummary) AllMatched() bool {
	return s.Mismatched == 0 &&
		s.MissingInBackup == 0 &&
		s.MissingInSource == 0 &&
		s.MissingBackupFiles == 0 &&
		s.MissingSourceFiles == 0 &&
		s.Skipped == 0 &&
		len(s.Failed) == 0
}

// Duration returns the wall time of the run.
func (s GlobalSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Observer is notified of every outcome as it is aggregated.
type Observer interface {
	Observe(reconcile.Outcome)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(reconcile.Outcome)

// Observe calls f.
func (f ObserverFunc) Observe(o reconcile.Outcome) { f(o) }

// DetailSink receives mismatch details as results arrive.
type DetailSink interface {
	WriteDetails(details []reconcile.MismatchDetail) error
}

// Aggregator folds file outcomes into a GlobalSummary. It is the single
// point where run-wide state changes.
type Aggregator struct {
	log       *zap.Logger
	observers []Observer

	mu      sync.Mutex
	summary GlobalSummary
	results []reconcile.FileResult
}

// NewAggregator creates an aggregator that notifies observers in order.
func NewAggregator(log *zap.Logger, observers ...Observer) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		log:       log,
		observers: observers,
		summary:   GlobalSummary{StartedAt: time.Now(), Failed: []FailedPair{}},
	}
}

// Run drains outcomes until the channel is closed, streaming details to
// sink when it is not nil. A sink failure is logged and returned after the
// channel is drained; later details are dropped so workers never block.
func (a *Aggregator) Run(outcomes <-chan reconcile.Outcome, sink DetailSink) error {
	var sinkErr error
	for o := range outcomes {
		a.Add(o)
		if sink == nil || sinkErr != nil || len(o.Details) == 0 {
			continue
		}
		if err := sink.WriteDetails(o.Details); err != nil {
			a.log.Error("Failed to write mismatch details", zap.String("file", o.Result.RelativePath), zap.Error(err))
			sinkErr = err
		}
	}
	a.finish()
	return sinkErr
}

// Add folds one outcome into the totals.
func (a *Aggregator) Add(o reconcile.Outcome) {
	r := o.Result

	a.mu.Lock()
	s := &a.summary
	s.Files++
	switch r.Status {
	case reconcile.StatusMatched:
		s.MatchedFiles++
	case reconcile.StatusMismatched:
		s.MismatchedFiles++
	case reconcile.StatusErrored:
		s.ErroredFiles++
	case reconcile.StatusSkipped:
		s.Skipped++
	case reconcile.StatusCancelled:
		s.Cancelled++
		s.Skipped++
	}
	if r.SourceMissing {
		s.MissingSourceFiles++
	}
	if r.BackupMissing {
		s.MissingBackupFiles++
	}
	s.RecordErrors += r.RecordErrors
	s.Details += int64(len(o.Details))

	if r.Compared() {
		s.ComparedFiles++
		s.SourceRecords += r.SourceRecords
		s.BackupRecords += r.BackupRecords
		s.Matched += r.Matched
		s.Mismatched += r.Mismatched
		s.MissingInBackup += r.MissingInBackup
		s.MissingInSource += r.MissingInSource
		s.DivergentDigests += r.DivergentDigests
		s.MatchRate = reconcile.MatchRate(s.Matched, s.SourceRecords)
	}
	if r.Failed() {
		s.Failed = append(s.Failed, FailedPair{
			RelativePath: r.RelativePath,
			Status:       r.Status,
			Errors:       r.Errors,
		})
	}
	a.results = append(a.results, r)
	a.mu.Unlock()

	for _, obs := range a.observers {
		obs.Observe(o)
	}
}

func (a *Aggregator) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.FinishedAt = time.Now()
	sort.Slice(a.summary.Failed, func(i, j int) bool {
		return a.summary.Failed[i].RelativePath < a.summary.Failed[j].RelativePath
	})
}

// Summary returns a copy of the current totals.
func (a *Aggregator) Summary() GlobalSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.summary
	s.Failed = append([]FailedPair(nil), a.summary.Failed...)
	return s
}

// Results returns the file results ordered by relative path.
func (a *Aggregator) Results() []reconcile.FileResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := append([]reconcile.FileResult(nil), a.results...)
	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out
}
