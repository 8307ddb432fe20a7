package reconcile

import (
	"backup-verifier/core/record"
)

// Index is a keyed multiset of digests for one file pair. It is owned by a
// single worker and is not safe for concurrent use.
type Index interface {
	// Add increments the count of rec.Digest on rec.Origin.
	Add(rec HashedRecord) error
	// Len returns the number of distinct digests currently held in memory.
	Len() int
	// Sweep visits every distinct digest once, after all records were added.
	Sweep(fn func(Classified) error) error
	// Close releases any resources held by the index.
	Close() error
}

type indexEntry struct {
	source    int64
	backup    int64
	side      Side
	first     int64
	content   []byte
	truncated bool
}

func (e *indexEntry) bump(side Side, n int64) {
	if side == SideSource {
		e.source += n
	} else {
		e.backup += n
	}
}

// paired reports whether the digest was seen on both sides. A paired
// digest never yields a mismatch detail, so it carries no content.
func (e *indexEntry) paired() bool {
	return e.source > 0 && e.backup > 0
}

// settle drops the representative content once the digest is paired.
func (e *indexEntry) settle() {
	if e.paired() {
		e.content, e.truncated = nil, false
	}
}

// merge folds o into e. The representative record is the one with the
// lowest sequence index on its side; source wins ties across sides.
func (e *indexEntry) merge(o *indexEntry) {
	e.source += o.source
	e.backup += o.backup
	if (o.side == e.side && o.first < e.first) || (o.side == SideSource && e.side == SideBackup) {
		e.side, e.first, e.content, e.truncated = o.side, o.first, o.content, o.truncated
	}
	e.settle()
}

// memoryIndex keeps every digest in a map. It is the default index.
type memoryIndex struct {
	entries map[record.Digest]*indexEntry
}

// NewMemoryIndex returns an index held entirely in memory.
func NewMemoryIndex() Index {
	return &memoryIndex{entries: make(map[record.Digest]*indexEntry)}
}

func (m *memoryIndex) Add(rec HashedRecord) error {
	add(m.entries, rec)
	return nil
}

func add(entries map[record.Digest]*indexEntry, rec HashedRecord) {
	e, ok := entries[rec.Digest]
	if !ok || (rec.Origin == SideSource && e.side == SideBackup) {
		if !ok {
			e = &indexEntry{}
			entries[rec.Digest] = e
		}
		e.side, e.first = rec.Origin, rec.Index
		e.content, e.truncated = rec.Content, rec.Truncated
	}
	e.bump(rec.Origin, 1)
	e.settle()
}

func (m *memoryIndex) Len() int { return len(m.entries) }

func (m *memoryIndex) Sweep(fn func(Classified) error) error {
	return sweep(m.entries, fn)
}

func sweep(entries map[record.Digest]*indexEntry, fn func(Classified) error) error {
	for d, e := range entries {
		err := fn(Classified{
			Digest:    d,
			Source:    e.source,
			Backup:    e.backup,
			Side:      e.side,
			First:     e.first,
			Content:   e.content,
			Truncated: e.truncated,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryIndex) Close() error {
	m.entries = nil
	return nil
}
