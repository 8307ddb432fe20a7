package reconcile

import (
	"time"

	"backup-verifier/core/record"
)

// Side identifies which collection a record or file belongs to.
type Side string

const (
	// SideSource is the collection being protected.
	SideSource Side = "source"
	// SideBackup is the copy being verified.
	SideBackup Side = "backup"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideSource {
		return SideBackup
	}
	return SideSource
}

// DetailSide labels on which side a mismatching digest was found.
type DetailSide string

const (
	// SourceOnly marks a digest present in the source file only.
	SourceOnly DetailSide = "source_only"
	// BackupOnly marks a digest present in the backup file only.
	BackupOnly DetailSide = "backup_only"
)

// ObjectRef locates one stored file.
type ObjectRef struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// FilePair is a source and backup file sharing the same relative path.
// A nil side marks a file that exists on one side only.
type FilePair struct {
	RelativePath string     `json:"relative_path"`
	Source       *ObjectRef `json:"source,omitempty"`
	Backup       *ObjectRef `json:"backup,omitempty"`
}

// HashedRecord is the comparable form of one extracted record.
type HashedRecord struct {
	Digest record.Digest
	Origin Side
	// Index is the 0-based sequence index within the file of its side.
	Index int64
	// Content is the canonical form, possibly truncated. Nil when details
	// are not captured.
	Content   []byte
	Truncated bool
}

// ErrorKind classifies a FileError.
type ErrorKind string

const (
	ErrorUnsupportedFormat ErrorKind = "unsupported_format"
	ErrorSourceOpen        ErrorKind = "source_open"
	ErrorMalformedDocument ErrorKind = "malformed_document"
	ErrorRecordParse       ErrorKind = "record_parse"
	ErrorSourceRead        ErrorKind = "source_read"
	ErrorIndex             ErrorKind = "index"
	ErrorCancelled         ErrorKind = "cancelled"
)

// Stages at which a FileError can be raised.
const (
	StageDetect    = "detect"
	StageOpen      = "open"
	StageExtract   = "extract"
	StageIndex     = "index"
	StageReconcile = "reconcile"
)

// FileError is one structured error attached to a FileResult.
type FileError struct {
	Stage    string    `json:"stage" yaml:"stage"`
	Kind     ErrorKind `json:"kind" yaml:"kind"`
	Side     Side      `json:"side,omitempty" yaml:"side,omitempty"`
	Position int64     `json:"position,omitempty" yaml:"position,omitempty"`
	Message  string    `json:"message" yaml:"message"`
}

// Status summarises how a file pair was processed.
type Status string

const (
	// StatusMatched means every record found its counterpart.
	StatusMatched Status = "matched"
	// StatusMismatched means the pair was compared and differs.
	StatusMismatched Status = "mismatched"
	// StatusErrored means the pair was compared from partially extracted
	// records; counts reflect what could be read.
	StatusErrored Status = "errored"
	// StatusSkipped means the pair could not be compared at all.
	StatusSkipped Status = "skipped"
	// StatusCancelled means the run stopped before the pair finished.
	StatusCancelled Status = "cancelled"
)

// FileResult holds the reconciliation counts of one file pair.
type FileResult struct {
	RelativePath string `json:"relative_path" yaml:"relative_path"`
	Format       string `json:"format,omitempty" yaml:"format,omitempty"`
	Status       Status `json:"status" yaml:"status"`

	SourceRecords int64 `json:"source_record_count" yaml:"source_record_count"`
	BackupRecords int64 `json:"backup_record_count" yaml:"backup_record_count"`

	Matched         int64 `json:"matched_count" yaml:"matched_count"`
	// Mismatched is reserved and always 0: records are compared by digest,
	// so a changed record counts as missing on both sides instead.
	Mismatched      int64 `json:"mismatched_count" yaml:"mismatched_count"`
	MissingInBackup int64 `json:"missing_in_backup_count" yaml:"missing_in_backup_count"`
	MissingInSource int64 `json:"missing_in_source_count" yaml:"missing_in_source_count"`

	// DivergentDigests counts digests present on both sides with unequal
	// multiplicity.
	DivergentDigests int64 `json:"divergent_digests" yaml:"divergent_digests"`
	// RecordErrors counts records rejected during extraction on either side.
	RecordErrors int64 `json:"record_errors" yaml:"record_errors"`
	// DetailsDropped counts mismatch details not emitted because of the
	// per-file detail limit.
	DetailsDropped int64 `json:"details_dropped,omitempty" yaml:"details_dropped,omitempty"`

	// MatchRate is Matched / max(SourceRecords, 1) as a percentage.
	MatchRate     float64 `json:"match_rate" yaml:"match_rate"`
	DurationMs    int64   `json:"processing_duration_ms" yaml:"processing_duration_ms"`
	SourceMissing bool    `json:"source_missing,omitempty" yaml:"source_missing,omitempty"`
	BackupMissing bool    `json:"backup_missing,omitempty" yaml:"backup_missing,omitempty"`

	Errors []FileError `json:"errors" yaml:"errors"`
}

// Balanced reports whether every extracted record is accounted for in
// exactly one bucket on both sides.
func (r FileResult) Balanced() bool {
	return r.SourceRecords == r.Matched+r.Mismatched+r.MissingInBackup &&
		r.BackupRecords == r.Matched+r.Mismatched+r.MissingInSource
}

// Compared reports whether the pair contributes to match statistics.
func (r FileResult) Compared() bool {
	return r.Status != StatusSkipped && r.Status != StatusCancelled
}

// Failed reports whether the pair could not be fully compared.
func (r FileResult) Failed() bool {
	return r.Status == StatusErrored || r.Status == StatusSkipped || r.Status == StatusCancelled
}

// MismatchDetail describes a digest found on one side only, with the
// canonical content of its first record on that side.
type MismatchDetail struct {
	Digest       record.Digest `json:"hash" yaml:"hash"`
	ShortDigest  string        `json:"hash_short" yaml:"hash_short"`
	RelativePath string        `json:"file_path" yaml:"file_path"`
	Side         DetailSide    `json:"bucket_type" yaml:"bucket_type"`
	// Index is the sequence index of the representative record.
	Index int64 `json:"sequence_index" yaml:"sequence_index"`
	// Count is how many records with this digest the side holds.
	Count     int64  `json:"count" yaml:"count"`
	Content   string `json:"json_content" yaml:"json_content"`
	Truncated bool   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// Outcome is what a worker hands to the aggregator for one file pair.
type Outcome struct {
	Result  FileResult
	Details []MismatchDetail
}

// Classified is one distinct digest after the final sweep of a file's index.
type Classified struct {
	Digest record.Digest
	Source int64
	Backup int64
	// Side and First locate the first record that introduced the digest.
	Side      Side
	First     int64
	Content   []byte
	Truncated bool
}

// Partition accumulates the multiset classification of a file.
type Partition struct {
	Matched         int64
	Mismatched      int64
	MissingInBackup int64
	MissingInSource int64
	Divergent       int64
}

// Add classifies one digest. Equal copies on both sides match pairwise;
// surplus copies count as missing on the side that lacks them. Digest
// equality implies content equality, so Mismatched never grows here.
func (p *Partition) Add(c Classified) {
	common := min(c.Source, c.Backup)
	p.Matched += common
	p.MissingInBackup += c.Source - common
	p.MissingInSource += c.Backup - common
	if common > 0 && c.Source != c.Backup {
		p.Divergent++
	}
}

// OneSided reports whether the digest exists on exactly one side.
func (c Classified) OneSided() bool {
	return (c.Source == 0) != (c.Backup == 0)
}
