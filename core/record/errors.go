package record

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformedDocument is returned when a whole document cannot be parsed.
	// It ends the extraction of the file.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrSourceRead is returned when the underlying byte stream fails mid-read.
	// It ends the extraction of the file; records extracted so far are kept.
	ErrSourceRead = errors.New("source read error")
)

// RecordError describes one record that could not be parsed. Extraction
// continues with the next record after a RecordError.
type RecordError struct {
	// Position is the 1-based line (line-delimited, tabular) or element
	// (array) number of the rejected record.
	Position int64
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Position, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// IsRecordError reports whether err is a recoverable per-record error.
func IsRecordError(err error) bool {
	var re *RecordError
	return errors.As(err, &re)
}

// faultReader remembers the first non-EOF error of the wrapped reader so
// parse failures caused by I/O can be told apart from malformed input.
type faultReader struct {
	r   io.Reader
	err error
}

func (f *faultReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err != nil && err != io.EOF && f.err == nil {
		f.err = err
	}
	return n, err
}

func (f *faultReader) sourceError() error {
	if f.err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrSourceRead, f.err)
}
