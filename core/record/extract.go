package record

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Record is one top-level object extracted from a file.
type Record struct {
	Value Value
	// Index is the 0-based position among successfully extracted records.
	Index int64
	// Position is the 1-based line or element number in the file.
	Position int64
}

// Extractor yields the records of one file lazily and in storage order.
//
// Next returns io.EOF at the end of the sequence. A *RecordError means one
// record was rejected and Next may be called again. Any other error ends the
// sequence; it wraps ErrMalformedDocument or ErrSourceRead.
type Extractor interface {
	Next() (Record, error)
	// Count returns the number of records extracted so far.
	Count() int64
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const readBufferSize = 256 * 1024

func expectObject(v Value) error {
	if v.Kind() != KindObject {
		return fmt.Errorf("expected object, got %s", v.Kind())
	}
	return nil
}

// lineExtractor parses one JSON object per non-empty line.
type lineExtractor struct {
	br    *bufio.Reader
	line  int64
	count int64
	done  bool
}

// NewLineExtractor reads line-delimited JSON. Lines that fail to parse are
// reported as *RecordError and skipped.
func NewLineExtractor(r io.Reader) Extractor {
	return &lineExtractor{br: bufio.NewReaderSize(r, readBufferSize)}
}

func (e *lineExtractor) Count() int64 { return e.count }

func (e *lineExtractor) Next() (Record, error) {
	for !e.done {
		raw, err := e.br.ReadBytes('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.done = true
				return Record{}, fmt.Errorf("%w: line %d: %v", ErrSourceRead, e.line+1, err)
			}
			e.done = true
		}
		if len(raw) == 0 && e.done {
			break
		}
		e.line++
		if e.line == 1 {
			raw = bytes.TrimPrefix(raw, utf8BOM)
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			continue
		}
		v, perr := Parse(trimmed)
		if perr == nil {
			perr = expectObject(v)
		}
		if perr != nil {
			return Record{}, &RecordError{Position: e.line, Err: perr}
		}
		rec := Record{Value: v, Index: e.count, Position: e.line}
		e.count++
		return rec, nil
	}
	return Record{}, io.EOF
}

// arrayExtractor walks a top-level JSON array one element at a time. Element
// boundaries are found by a byte scanner that tracks nesting and strings, so
// a malformed element can be skipped without losing the rest of the array.
type arrayExtractor struct {
	br      *bufio.Reader
	buf     []byte
	started bool
	done    bool
	// tail is reported once the array has been fully consumed.
	tail    error
	element int64
	count   int64
}

// NewArrayExtractor reads a JSON array of objects incrementally. Memory use
// is proportional to the largest element.
func NewArrayExtractor(r io.Reader) Extractor {
	return &arrayExtractor{br: bufio.NewReaderSize(r, readBufferSize)}
}

func (e *arrayExtractor) Count() int64 { return e.count }

func (e *arrayExtractor) Next() (Record, error) {
	if e.done {
		if err := e.tail; err != nil {
			e.tail = nil
			return Record{}, err
		}
		return Record{}, io.EOF
	}
	if !e.started {
		e.started = true
		if err := e.open(); err != nil {
			e.done = true
			return Record{}, err
		}
		if e.done {
			return e.Next()
		}
	}

	raw, term, err := e.scanElement()
	if err != nil {
		e.done = true
		if errors.Is(err, io.EOF) {
			return Record{}, fmt.Errorf("%w: unexpected end of input after element %d", ErrMalformedDocument, e.element)
		}
		return Record{}, fmt.Errorf("%w: element %d: %v", ErrSourceRead, e.element+1, err)
	}
	e.element++
	if term == ']' {
		e.close()
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Record{}, &RecordError{Position: e.element, Err: errors.New("empty array element")}
	}
	v, perr := Parse(trimmed)
	if perr == nil {
		perr = expectObject(v)
	}
	if perr != nil {
		return Record{}, &RecordError{Position: e.element, Err: perr}
	}
	rec := Record{Value: v, Index: e.count, Position: e.element}
	e.count++
	return rec, nil
}

// open consumes the opening bracket and detects an empty array.
func (e *arrayExtractor) open() error {
	c, err := e.skipSpace(true)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty document", ErrMalformedDocument)
		}
		return fmt.Errorf("%w: %v", ErrSourceRead, err)
	}
	if c != '[' {
		return fmt.Errorf("%w: expected '[' at start of array, found %q", ErrMalformedDocument, c)
	}
	c, err = e.skipSpace(false)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unterminated array", ErrMalformedDocument)
		}
		return fmt.Errorf("%w: %v", ErrSourceRead, err)
	}
	if c == ']' {
		e.close()
		return nil
	}
	return e.br.UnreadByte()
}

// close ends the sequence after the top-level ']'. Only whitespace may
// follow it; anything else is kept in tail.
func (e *arrayExtractor) close() {
	e.done = true
	c, err := e.skipSpace(false)
	switch {
	case err == nil:
		e.tail = fmt.Errorf("%w: unexpected data %q after top-level array", ErrMalformedDocument, c)
	case !errors.Is(err, io.EOF):
		e.tail = fmt.Errorf("%w: %v", ErrSourceRead, err)
	}
}

func (e *arrayExtractor) skipSpace(allowBOM bool) (byte, error) {
	first := allowBOM
	for {
		c, err := e.br.ReadByte()
		if err != nil {
			return 0, err
		}
		if first && c == utf8BOM[0] {
			// Leading BOM: drop the remaining two bytes.
			if _, err := e.br.Discard(len(utf8BOM) - 1); err != nil {
				return 0, err
			}
			first = false
			continue
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c, nil
	}
}

// scanElement returns the raw bytes of the next element and the byte that
// terminated it (',' or ']').
func (e *arrayExtractor) scanElement() ([]byte, byte, error) {
	e.buf = e.buf[:0]
	depth := 0
	inString, escaped := false, false
	for {
		c, err := e.br.ReadByte()
		if err != nil {
			return nil, 0, err
		}
		if inString {
			e.buf = append(e.buf, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			if depth == 0 && c == ']' {
				return e.buf, c, nil
			}
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				return e.buf, c, nil
			}
		}
		e.buf = append(e.buf, c)
	}
}

// singleExtractor treats the whole stream as one object.
type singleExtractor struct {
	src   *faultReader
	done  bool
	count int64
}

// NewSingleExtractor reads a stream holding exactly one JSON object.
func NewSingleExtractor(r io.Reader) Extractor {
	return &singleExtractor{src: &faultReader{r: bufio.NewReaderSize(r, readBufferSize)}}
}

func (e *singleExtractor) Count() int64 { return e.count }

func (e *singleExtractor) Next() (Record, error) {
	if e.done {
		return Record{}, io.EOF
	}
	e.done = true

	v, err := decodeDocument(&bomSkipper{r: e.src})
	if err != nil {
		if srcErr := e.src.sourceError(); srcErr != nil {
			return Record{}, srcErr
		}
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if err := expectObject(v); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	e.count = 1
	return Record{Value: v, Index: 0, Position: 1}, nil
}

// bomSkipper drops a UTF-8 byte order mark at the start of a stream.
type bomSkipper struct {
	r       io.Reader
	checked bool
	pending []byte
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, head)
		head = head[:n]
		if !bytes.Equal(head, utf8BOM) {
			b.pending = head
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return 0, err
		}
	}
	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// tabularExtractor maps each data row onto the header row.
type tabularExtractor struct {
	src    *faultReader
	cr     *csv.Reader
	header []string
	done   bool
	count  int64
}

// NewTabularExtractor reads delimited text with a header row. Every value is
// a string; nested structures are not supported in this mode.
func NewTabularExtractor(r io.Reader, delimiter rune) Extractor {
	src := &faultReader{r: r}
	cr := csv.NewReader(bufio.NewReaderSize(src, readBufferSize))
	cr.Comma = delimiter
	return &tabularExtractor{src: src, cr: cr}
}

func (e *tabularExtractor) Count() int64 { return e.count }

func (e *tabularExtractor) Next() (Record, error) {
	if e.done {
		return Record{}, io.EOF
	}
	if e.header == nil {
		row, err := e.cr.Read()
		if err != nil {
			e.done = true
			if errors.Is(err, io.EOF) {
				return Record{}, io.EOF
			}
			if srcErr := e.src.sourceError(); srcErr != nil {
				return Record{}, srcErr
			}
			return Record{}, fmt.Errorf("%w: header: %v", ErrMalformedDocument, err)
		}
		row[0] = strings.TrimPrefix(row[0], "\ufeff")
		e.header = row
	}

	row, err := e.cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			e.done = true
			return Record{}, io.EOF
		}
		if srcErr := e.src.sourceError(); srcErr != nil {
			e.done = true
			return Record{}, srcErr
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return Record{}, &RecordError{Position: int64(pe.Line), Err: pe.Err}
		}
		e.done = true
		return Record{}, fmt.Errorf("%w: %v", ErrSourceRead, err)
	}

	line, _ := e.cr.FieldPos(0)
	members := make([]Member, len(e.header))
	for i, name := range e.header {
		members[i] = Member{Key: name, Value: String(row[i])}
	}
	rec := Record{Value: Object(members...), Index: e.count, Position: int64(line)}
	e.count++
	return rec, nil
}
