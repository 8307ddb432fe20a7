package format

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"backup-verifier/core/record"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnsupportedFormat is returned when a file name maps to no known format.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Kind is the record layout of a file.
type Kind string

const (
	// KindLines is one JSON object per line.
	KindLines Kind = "jsonl"
	// KindArray is a top-level JSON array of objects.
	KindArray Kind = "array"
	// KindSingle is a file holding exactly one JSON object.
	KindSingle Kind = "single"
	// KindCSV is comma separated text with a header row.
	KindCSV Kind = "csv"
	// KindTSV is tab separated text with a header row.
	KindTSV Kind = "tsv"
)

// Compression is the byte-level encoding wrapped around a file.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// Format is the detected layout and compression of one file.
type Format struct {
	Kind        Kind
	Compression Compression
}

func (f Format) String() string {
	if f.Compression == CompressionNone || f.Compression == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + "+" + string(f.Compression)
}

// ParseMode validates a configured fallback mode. Aliases used by common
// tooling are accepted.
func ParseMode(mode string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "jsonl", "ndjson", "lines", "jsonlines":
		return KindLines, nil
	case "array", "json_array":
		return KindArray, nil
	case "single", "object", "json":
		return KindSingle, nil
	case "csv":
		return KindCSV, nil
	case "tsv":
		return KindTSV, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrUnsupportedFormat, mode)
	}
}

var compressionSuffixes = map[string]Compression{
	".gz":   CompressionGzip,
	".gzip": CompressionGzip,
	".zst":  CompressionZstd,
	".zstd": CompressionZstd,
	".lz4":  CompressionLZ4,
}

// Detect derives the format of name from its suffixes. A trailing
// compression suffix is peeled first; the remaining extension selects the
// layout. ".json" and extension-less names are ambiguous and use fallback.
func Detect(name string, fallback Kind) (Format, error) {
	base := strings.ToLower(path.Base(name))
	f := Format{Compression: CompressionNone}

	ext := path.Ext(base)
	if c, ok := compressionSuffixes[ext]; ok {
		f.Compression = c
		base = strings.TrimSuffix(base, ext)
		ext = path.Ext(base)
	}

	switch ext {
	case ".jsonl", ".ndjson", ".jsonlines":
		f.Kind = KindLines
	case ".json", "":
		if fallback == "" {
			fallback = KindLines
		}
		f.Kind = fallback
	case ".csv":
		f.Kind = KindCSV
	case ".tsv":
		f.Kind = KindTSV
	default:
		return Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	return f, nil
}

// Decompress wraps r with the decoder for c. The returned closer releases
// decoder resources only; closing r stays with the caller.
func Decompress(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone, "":
		return io.NopCloser(r), nil
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, decompressError("gzip", err)
		}
		return zr, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, decompressError("zstd", err)
		}
		return zr.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: compression %q", ErrUnsupportedFormat, c)
	}
}

func decompressError(codec string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: empty or truncated %s stream", record.ErrMalformedDocument, codec)
	}
	if errors.Is(err, gzip.ErrHeader) || errors.Is(err, gzip.ErrChecksum) {
		return fmt.Errorf("%w: %s: %v", record.ErrMalformedDocument, codec, err)
	}
	return fmt.Errorf("%w: %s: %v", record.ErrSourceRead, codec, err)
}

// NewExtractor returns the record extractor for kind over r.
func NewExtractor(r io.Reader, kind Kind) (record.Extractor, error) {
	switch kind {
	case KindLines:
		return record.NewLineExtractor(r), nil
	case KindArray:
		return record.NewArrayExtractor(r), nil
	case KindSingle:
		return record.NewSingleExtractor(r), nil
	case KindCSV:
		return record.NewTabularExtractor(r, ','), nil
	case KindTSV:
		return record.NewTabularExtractor(r, '\t'), nil
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedFormat, kind)
	}
}

// Open decompresses r according to f and returns an extractor over the
// decoded stream. Closing the returned closer releases the decoder; r itself
// is not closed.
func Open(r io.Reader, f Format) (record.Extractor, io.Closer, error) {
	decoded, err := Decompress(r, f.Compression)
	if err != nil {
		return nil, nil, err
	}
	ex, err := NewExtractor(decoded, f.Kind)
	if err != nil {
		decoded.Close()
		return nil, nil, err
	}
	return ex, decoded, nil
}
