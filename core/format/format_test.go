package format_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"backup-verifier/core/format"
	"backup-verifier/core/record"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		fallback format.Kind
		want     format.Format
		wantErr  bool
	}{
		{"jsonl", "a/b/orders.jsonl", format.KindArray, format.Format{Kind: format.KindLines, Compression: format.CompressionNone}, false},
		{"ndjson gzip", "orders.NDJSON.GZ", format.KindArray, format.Format{Kind: format.KindLines, Compression: format.CompressionGzip}, false},
		{"json uses fallback", "orders.json", format.KindArray, format.Format{Kind: format.KindArray, Compression: format.CompressionNone}, false},
		{"json zstd", "orders.json.zst", format.KindSingle, format.Format{Kind: format.KindSingle, Compression: format.CompressionZstd}, false},
		{"no extension", "dump", format.KindLines, format.Format{Kind: format.KindLines, Compression: format.CompressionNone}, false},
		{"bare gzip", "dump.gz", format.KindLines, format.Format{Kind: format.KindLines, Compression: format.CompressionGzip}, false},
		{"csv lz4", "table.csv.lz4", format.KindLines, format.Format{Kind: format.KindCSV, Compression: format.CompressionLZ4}, false},
		{"tsv", "table.tsv", format.KindLines, format.Format{Kind: format.KindTSV, Compression: format.CompressionNone}, false},
		{"empty fallback", "x.json", "", format.Format{Kind: format.KindLines, Compression: format.CompressionNone}, false},
		{"parquet", "table.parquet", format.KindLines, format.Format{}, true},
		{"xml gzip", "feed.xml.gz", format.KindLines, format.Format{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := format.Detect(tt.file, tt.fallback)
			if tt.wantErr {
				assert.ErrorIs(t, err, format.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]format.Kind{
		"jsonl":  format.KindLines,
		"NDJSON": format.KindLines,
		"array":  format.KindArray,
		"single": format.KindSingle,
		"csv":    format.KindCSV,
		" tsv ":  format.KindTSV,
	} {
		got, err := format.ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := format.ParseMode("xml")
	assert.ErrorIs(t, err, format.ErrUnsupportedFormat)
}

func compress(t *testing.T, c format.Compression, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch c {
	case format.CompressionGzip:
		w = gzip.NewWriter(&buf)
	case format.CompressionZstd:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case format.CompressionLZ4:
		w = lz4.NewWriter(&buf)
	default:
		buf.WriteString(data)
		return buf.Bytes()
	}
	_, err := w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestOpen_Decompresses(t *testing.T) {
	payload := "{\"id\":1}\n{\"id\":2}\n{\"id\":3}\n"

	for _, c := range []format.Compression{format.CompressionNone, format.CompressionGzip, format.CompressionZstd, format.CompressionLZ4} {
		t.Run(string(c), func(t *testing.T) {
			raw := compress(t, c, payload)
			ex, closer, err := format.Open(bytes.NewReader(raw), format.Format{Kind: format.KindLines, Compression: c})
			require.NoError(t, err)
			defer closer.Close()

			count := 0
			for {
				_, err := ex.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				count++
			}
			assert.Equal(t, 3, count)
		})
	}
}

func TestOpen_CorruptGzipHeader(t *testing.T) {
	_, _, err := format.Open(strings.NewReader("definitely not gzip"), format.Format{Kind: format.KindLines, Compression: format.CompressionGzip})
	assert.ErrorIs(t, err, record.ErrMalformedDocument)

	_, _, err = format.Open(strings.NewReader(""), format.Format{Kind: format.KindLines, Compression: format.CompressionGzip})
	assert.ErrorIs(t, err, record.ErrMalformedDocument)
}

func TestNewExtractor_UnknownKind(t *testing.T) {
	_, err := format.NewExtractor(strings.NewReader(""), format.Kind("xml"))
	assert.ErrorIs(t, err, format.ErrUnsupportedFormat)
}

func TestFormat_String(t *testing.T) {
	assert.Equal(t, "jsonl", format.Format{Kind: format.KindLines, Compression: format.CompressionNone}.String())
	assert.Equal(t, "array+gzip", format.Format{Kind: format.KindArray, Compression: format.CompressionGzip}.String())
}
