package reconcile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"backup-verifier/core/record"

	"github.com/pierrec/lz4/v4"
)

// spillShards is the number of shard files; shards are keyed by the top
// nibble of the digest.
const spillShards = 16

type spillShard struct {
	file *os.File
	w    *lz4.Writer
}

// spillIndex holds up to threshold distinct digests in memory and flushes
// them to lz4 compressed shard files beyond that. The final sweep merges
// one shard at a time, so peak memory is about one sixteenth of the file's
// distinct digests.
type spillIndex struct {
	dir       string
	threshold int
	mem       map[record.Digest]*indexEntry
	shards    [spillShards]*spillShard
	spilled   bool
	buf       []byte
}

// NewSpillIndex returns an index that spills to dir once more than
// threshold distinct digests are held in memory.
func NewSpillIndex(dir string, threshold int) Index {
	if threshold <= 0 {
		threshold = DefaultSpillThreshold
	}
	return &spillIndex{
		dir:       dir,
		threshold: threshold,
		mem:       make(map[record.Digest]*indexEntry),
	}
}

func (s *spillIndex) Add(rec HashedRecord) error {
	add(s.mem, rec)
	if len(s.mem) > s.threshold {
		return s.flush()
	}
	return nil
}

func (s *spillIndex) Len() int { return len(s.mem) }

func (s *spillIndex) flush() error {
	for d, e := range s.mem {
		shard, err := s.shard(d)
		if err != nil {
			return err
		}
		s.buf = encodeEntry(s.buf[:0], d, e)
		if _, err := shard.w.Write(s.buf); err != nil {
			return fmt.Errorf("write spill shard: %w", err)
		}
	}
	s.mem = make(map[record.Digest]*indexEntry)
	s.spilled = true
	return nil
}

func (s *spillIndex) shard(d record.Digest) (*spillShard, error) {
	n := d[0] >> 4
	if sh := s.shards[n]; sh != nil {
		return sh, nil
	}
	f, err := os.CreateTemp(s.dir, fmt.Sprintf("digest-shard-%02d-*.lz4", n))
	if err != nil {
		return nil, fmt.Errorf("create spill shard: %w", err)
	}
	sh := &spillShard{file: f, w: lz4.NewWriter(f)}
	s.shards[n] = sh
	return sh, nil
}

func (s *spillIndex) Sweep(fn func(Classified) error) error {
	if !s.spilled {
		return sweep(s.mem, fn)
	}
	if len(s.mem) > 0 {
		if err := s.flush(); err != nil {
			return err
		}
	}
	for _, sh := range s.shards {
		if sh == nil {
			continue
		}
		entries, err := sh.load()
		if err != nil {
			return err
		}
		if err := sweep(entries, fn); err != nil {
			return err
		}
	}
	return nil
}

// load finishes the shard's compressed stream and reads it back, merging
// repeated digests.
func (sh *spillShard) load() (map[record.Digest]*indexEntry, error) {
	if err := sh.w.Close(); err != nil {
		return nil, fmt.Errorf("close spill shard: %w", err)
	}
	if _, err := sh.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind spill shard: %w", err)
	}

	br := bufio.NewReader(lz4.NewReader(sh.file))
	entries := make(map[record.Digest]*indexEntry)
	for {
		d, e, err := decodeEntry(br)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read spill shard %s: %w", sh.file.Name(), err)
		}
		if cur, ok := entries[d]; ok {
			cur.merge(e)
		} else {
			entries[d] = e
		}
	}
}

func (s *spillIndex) Close() error {
	var errs []error
	for i, sh := range s.shards {
		if sh == nil {
			continue
		}
		sh.w.Close()
		name := sh.file.Name()
		if err := sh.file.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		s.shards[i] = nil
	}
	s.mem = nil
	return errors.Join(errs...)
}

// Entry layout: digest, uvarint source, uvarint backup, flags byte (bit 0
// backup side, bit 1 truncated), uvarint first, uvarint content length,
// content. Paired entries are written without content.
func encodeEntry(dst []byte, d record.Digest, e *indexEntry) []byte {
	e.settle()
	dst = append(dst, d[:]...)
	dst = binary.AppendUvarint(dst, uint64(e.source))
	dst = binary.AppendUvarint(dst, uint64(e.backup))
	var flags byte
	if e.side == SideBackup {
		flags |= 1
	}
	if e.truncated {
		flags |= 2
	}
	dst = append(dst, flags)
	dst = binary.AppendUvarint(dst, uint64(e.first))
	dst = binary.AppendUvarint(dst, uint64(len(e.content)))
	return append(dst, e.content...)
}

func decodeEntry(br *bufio.Reader) (record.Digest, *indexEntry, error) {
	var d record.Digest
	if _, err := io.ReadFull(br, d[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return d, nil, fmt.Errorf("truncated entry: %w", err)
		}
		return d, nil, err
	}

	var fields [2]uint64
	for i := range fields {
		v, err := binary.ReadUvarint(br)
		if err != nil {
			return d, nil, unexpected(err)
		}
		fields[i] = v
	}
	flags, err := br.ReadByte()
	if err != nil {
		return d, nil, unexpected(err)
	}
	first, err := binary.ReadUvarint(br)
	if err != nil {
		return d, nil, unexpected(err)
	}
	size, err := binary.ReadUvarint(br)
	if err != nil {
		return d, nil, unexpected(err)
	}

	e := &indexEntry{
		source:    int64(fields[0]),
		backup:    int64(fields[1]),
		side:      SideSource,
		first:     int64(first),
		truncated: flags&2 != 0,
	}
	if flags&1 != 0 {
		e.side = SideBackup
	}
	if size > 0 {
		e.content = make([]byte, size)
		if _, err := io.ReadFull(br, e.content); err != nil {
			return d, nil, unexpected(err)
		}
	}
	return d, e, nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
