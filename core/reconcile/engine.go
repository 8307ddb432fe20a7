package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
	"unicode/utf8"

	"backup-verifier/core/format"
	"backup-verifier/core/record"

	"go.uber.org/zap"
)

const (
	// DefaultChunkSize is the number of records drawn per side per chunk.
	DefaultChunkSize = 10000
	// DefaultSpillThreshold is the number of distinct digests held in memory
	// before a spill index writes to disk.
	DefaultSpillThreshold = 1_000_000
	// maxErrorEntries caps the FileError list of one file; RecordErrors keeps
	// the full count.
	maxErrorEntries = 100
)

// Opener opens the byte stream of a stored file.
type Opener interface {
	Open(ctx context.Context, ref ObjectRef) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, ref ObjectRef) (io.ReadCloser, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, ref ObjectRef) (io.ReadCloser, error) {
	return f(ctx, ref)
}

// Engine reconciles one file pair at a time. An Engine is safe for
// concurrent use; every call to Compare owns its streams and index.
type Engine struct {
	Opener Opener
	// Mode is the layout used when the file name is ambiguous.
	Mode format.Kind
	// ChunkSize bounds how many records are drawn from one side before the
	// other side gets a turn.
	ChunkSize int
	Hasher    record.Hasher
	// CaptureDetails keeps canonical content for mismatch details.
	CaptureDetails bool
	// MaxDetailBytes truncates captured content; 0 keeps it whole.
	MaxDetailBytes int
	// MaxDetails caps the details emitted per file; 0 means no limit.
	MaxDetails int
	// SpillDir enables the disk backed index when set.
	SpillDir       string
	SpillThreshold int
	Logger         *zap.Logger
}

// stream is one side of a file pair being extracted.
type stream struct {
	side    Side
	ref     *ObjectRef
	body    io.ReadCloser
	decoder io.Closer
	ex      record.Extractor
	done    bool
}

func (s *stream) close() {
	if s.decoder != nil {
		s.decoder.Close()
		s.decoder = nil
	}
	if s.body != nil {
		s.body.Close()
		s.body = nil
	}
	s.done = true
}

// run carries the per-file state of one Compare call.
type run struct {
	e      *Engine
	log    *zap.Logger
	result *FileResult
	index  Index
}

// Compare reconciles pair and returns its result and mismatch details. It
// never fails; every problem is recorded as a FileError on the result.
func (e *Engine) Compare(ctx context.Context, pair FilePair) Outcome {
	start := time.Now()
	log := e.logger().With(zap.String("file", pair.RelativePath))
	result := FileResult{
		RelativePath:  pair.RelativePath,
		SourceMissing: pair.Source == nil,
		BackupMissing: pair.Backup == nil,
		Errors:        []FileError{},
	}
	finish := func(details []MismatchDetail) Outcome {
		result.DurationMs = time.Since(start).Milliseconds()
		finalize(&result)
		return Outcome{Result: result, Details: details}
	}

	if err := ctx.Err(); err != nil {
		markCancelled(&result, err)
		return finish(nil)
	}

	f, err := format.Detect(pair.RelativePath, e.Mode)
	if err != nil {
		log.Warn("Skipping file with unsupported format", zap.Error(err))
		result.Status = StatusSkipped
		result.Errors = append(result.Errors, FileError{
			Stage:   StageDetect,
			Kind:    ErrorUnsupportedFormat,
			Message: err.Error(),
		})
		return finish(nil)
	}
	result.Format = f.String()

	index := e.newIndex()
	defer func() {
		if err := index.Close(); err != nil {
			log.Warn("Failed to release digest index", zap.Error(err))
		}
	}()

	r := &run{e: e, log: log, result: &result, index: index}
	streams := []*stream{
		{side: SideSource, ref: pair.Source},
		{side: SideBackup, ref: pair.Backup},
	}
	defer func() {
		for _, s := range streams {
			s.close()
		}
	}()

	opened := 0
	for _, s := range streams {
		if r.open(ctx, s, f) {
			opened++
		}
	}
	if opened == 0 && !(result.SourceMissing && result.BackupMissing) && len(result.Errors) > 0 {
		result.Status = StatusSkipped
		return finish(nil)
	}

	if err := r.extract(ctx, streams); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info("File comparison cancelled",
				zap.Int64("source_records", result.SourceRecords),
				zap.Int64("backup_records", result.BackupRecords))
			markCancelled(&result, err)
			return finish(nil)
		}
		result.addError(FileError{Stage: StageIndex, Kind: ErrorIndex, Message: err.Error()})
		result.Status = StatusErrored
		return finish(nil)
	}

	details, err := r.classify(ctx)
	if err != nil {
		if ctx.Err() != nil {
			markCancelled(&result, ctx.Err())
			return finish(nil)
		}
		result.addError(FileError{Stage: StageReconcile, Kind: ErrorIndex, Message: err.Error()})
		result.Status = StatusErrored
		return finish(nil)
	}

	out := finish(details)
	log.Debug("File compared",
		zap.String("status", string(out.Result.Status)),
		zap.Int64("matched", out.Result.Matched),
		zap.Int64("missing_in_backup", out.Result.MissingInBackup),
		zap.Int64("missing_in_source", out.Result.MissingInSource),
		zap.Int64("duration_ms", out.Result.DurationMs))
	return out
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Engine) chunkSize() int {
	if e.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return e.ChunkSize
}

func (e *Engine) newIndex() Index {
	if e.SpillDir != "" {
		return NewSpillIndex(e.SpillDir, e.SpillThreshold)
	}
	return NewMemoryIndex()
}

// open prepares the extractor of one side. It returns false when the side
// has nothing to extract.
func (r *run) open(ctx context.Context, s *stream, f format.Format) bool {
	if s.ref == nil {
		s.done = true
		return false
	}
	body, err := r.e.Opener.Open(ctx, *s.ref)
	if err != nil {
		r.log.Warn("Failed to open object", zap.String("side", string(s.side)), zap.Error(err))
		r.result.addError(FileError{
			Stage:   StageOpen,
			Kind:    ErrorSourceOpen,
			Side:    s.side,
			Message: err.Error(),
		})
		s.done = true
		return false
	}
	s.body = body

	ex, decoder, err := format.Open(body, f)
	if err != nil {
		r.result.addError(FileError{
			Stage:   StageOpen,
			Kind:    kindOf(err),
			Side:    s.side,
			Message: err.Error(),
		})
		s.close()
		return false
	}
	s.ex, s.decoder = ex, decoder
	return true
}

// extract alternates between the sides, drawing up to one chunk from each in
// turn until both are exhausted. Only an index or context error is returned.
func (r *run) extract(ctx context.Context, streams []*stream) error {
	for {
		active := false
		for _, s := range streams {
			if s.done {
				continue
			}
			active = true
			if err := r.drawChunk(ctx, s); err != nil {
				return err
			}
		}
		if !active {
			return nil
		}
	}
}

func (r *run) drawChunk(ctx context.Context, s *stream) error {
	size := r.e.chunkSize()
	for n := 0; n < size; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := s.ex.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.close()
				return nil
			}
			var re *record.RecordError
			if errors.As(err, &re) {
				r.result.RecordErrors++
				r.log.Warn("Skipping unparsable record",
					zap.String("side", string(s.side)),
					zap.Int64("position", re.Position),
					zap.Error(re.Err))
				r.result.addError(FileError{
					Stage:    StageExtract,
					Kind:     ErrorRecordParse,
					Side:     s.side,
					Position: re.Position,
					Message:  re.Error(),
				})
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.log.Warn("Extraction stopped early",
				zap.String("side", string(s.side)),
				zap.Int64("records", s.ex.Count()),
				zap.Error(err))
			r.result.addError(FileError{
				Stage:   StageExtract,
				Kind:    kindOf(err),
				Side:    s.side,
				Message: err.Error(),
			})
			s.close()
			return nil
		}

		digest, canonical := r.e.Hasher.Hash(rec.Value)
		hashed := HashedRecord{Digest: digest, Origin: s.side, Index: rec.Index}
		if r.e.CaptureDetails {
			hashed.Content, hashed.Truncated = truncateContent(canonical, r.e.MaxDetailBytes)
		}
		if err := r.index.Add(hashed); err != nil {
			return err
		}
		if s.side == SideSource {
			r.result.SourceRecords++
		} else {
			r.result.BackupRecords++
		}
	}
	r.log.Debug("Chunk indexed",
		zap.String("side", string(s.side)),
		zap.Int64("records", s.ex.Count()),
		zap.Int("distinct_in_memory", r.index.Len()))
	return nil
}

// classify runs the final sweep over the index and builds the details of
// every one-sided digest, ordered by side and first occurrence.
func (r *run) classify(ctx context.Context) ([]MismatchDetail, error) {
	var p Partition
	var details []MismatchDetail
	visited := 0
	err := r.index.Sweep(func(c Classified) error {
		visited++
		if visited%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		p.Add(c)
		if !c.OneSided() {
			return nil
		}
		detail := MismatchDetail{
			Digest:       c.Digest,
			ShortDigest:  c.Digest.Short(),
			RelativePath: r.result.RelativePath,
			Index:        c.First,
		}
		if c.Source > 0 {
			detail.Side, detail.Count = SourceOnly, c.Source
		} else {
			detail.Side, detail.Count = BackupOnly, c.Backup
		}
		if c.Content != nil {
			detail.Content = string(c.Content)
			detail.Truncated = c.Truncated
		}
		details = append(details, detail)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.result.Matched = p.Matched
	r.result.Mismatched = p.Mismatched
	r.result.MissingInBackup = p.MissingInBackup
	r.result.MissingInSource = p.MissingInSource
	r.result.DivergentDigests = p.Divergent

	sort.Slice(details, func(i, j int) bool {
		if details[i].Side != details[j].Side {
			return details[i].Side == SourceOnly
		}
		return details[i].Index < details[j].Index
	})
	if limit := r.e.MaxDetails; limit > 0 && len(details) > limit {
		r.result.DetailsDropped = int64(len(details) - limit)
		details = details[:limit]
	}
	return details, nil
}

func (r *FileResult) addError(fe FileError) {
	if len(r.Errors) >= maxErrorEntries {
		return
	}
	r.Errors = append(r.Errors, fe)
}

// markCancelled keeps the extracted counts but drops the classification;
// a cancelled pair is counted as skipped.
func markCancelled(r *FileResult, cause error) {
	r.Status = StatusCancelled
	r.Matched, r.Mismatched, r.MissingInBackup, r.MissingInSource = 0, 0, 0, 0
	r.DivergentDigests = 0
	r.Errors = append(r.Errors, FileError{
		Stage:   StageReconcile,
		Kind:    ErrorCancelled,
		Message: fmt.Sprintf("cancelled: %v", cause),
	})
}

func finalize(r *FileResult) {
	if r.Status == "" {
		switch {
		case hasFileError(r):
			r.Status = StatusErrored
		case r.SourceMissing || r.BackupMissing ||
			r.Mismatched > 0 || r.MissingInBackup > 0 || r.MissingInSource > 0:
			r.Status = StatusMismatched
		default:
			r.Status = StatusMatched
		}
	}
	if r.Compared() {
		r.MatchRate = MatchRate(r.Matched, r.SourceRecords)
	}
}

func hasFileError(r *FileResult) bool {
	return r.RecordErrors > 0 || len(r.Errors) > 0
}

// MatchRate returns matched / max(source, 1) as a percentage.
func MatchRate(matched, source int64) float64 {
	return float64(matched) / float64(max(source, 1)) * 100
}

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, format.ErrUnsupportedFormat):
		return ErrorUnsupportedFormat
	case errors.Is(err, record.ErrMalformedDocument):
		return ErrorMalformedDocument
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCancelled
	default:
		return ErrorSourceRead
	}
}

// truncateContent cuts canonical to at most limit bytes on a rune boundary.
func truncateContent(canonical []byte, limit int) ([]byte, bool) {
	if limit <= 0 || len(canonical) <= limit {
		return canonical, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(canonical[cut]) {
		cut--
	}
	out := make([]byte, cut)
	copy(out, canonical[:cut])
	return out, true
}
