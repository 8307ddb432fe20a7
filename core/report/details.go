package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"backup-verifier/core/reconcile"
)

var detailHeader = []string{
	"hash", "hash_short", "file_path", "bucket_type",
	"sequence_index", "count", "truncated", "json_content",
}

// DetailWriter streams mismatch details to a CSV file as results arrive.
// The file is created on the first write, so a clean run leaves nothing
// behind.
type DetailWriter struct {
	path   string
	append bool

	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	written int64
}

// NewDetailWriter returns a writer for path. With appendRows set an
// existing file is extended instead of replaced.
func NewDetailWriter(path string, appendRows bool) *DetailWriter {
	return &DetailWriter{path: path, append: appendRows}
}

// Path returns the file the writer targets.
func (d *DetailWriter) Path() string { return d.path }

// Written returns how many details have been written.
func (d *DetailWriter) Written() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written
}

// WriteDetails appends details and flushes them to disk.
func (d *DetailWriter) WriteDetails(details []reconcile.MismatchDetail) error {
	if len(details) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.w == nil {
		if err := d.open(); err != nil {
			return err
		}
	}
	for _, m := range details {
		row := []string{
			m.Digest.String(),
			m.ShortDigest,
			m.RelativePath,
			string(m.Side),
			strconv.FormatInt(m.Index, 10),
			strconv.FormatInt(m.Count, 10),
			strconv.FormatBool(m.Truncated),
			m.Content,
		}
		if err := d.w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", d.path, err)
		}
		d.written++
	}
	d.w.Flush()
	if err := d.w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", d.path, err)
	}
	return nil
}

func (d *DetailWriter) open() error {
	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create details directory: %w", err)
		}
	}
	f, fresh, err := openCSV(d.path, d.append)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(detailHeader); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", d.path, err)
		}
	}
	d.f, d.w = f, w
	return nil
}

// Close flushes and closes the file if one was opened.
func (d *DetailWriter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	d.w.Flush()
	err := d.w.Error()
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	d.f, d.w = nil, nil
	return err
}
