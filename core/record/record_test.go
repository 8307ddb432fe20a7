package record

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ex Extractor) ([]Record, []*RecordError, error) {
	t.Helper()
	var records []Record
	var recordErrs []*RecordError
	for {
		rec, err := ex.Next()
		if errors.Is(err, io.EOF) {
			return records, recordErrs, nil
		}
		var re *RecordError
		if errors.As(err, &re) {
			recordErrs = append(recordErrs, re)
			continue
		}
		if err != nil {
			return records, recordErrs, err
		}
		records = append(records, rec)
	}
}

func mustParse(t *testing.T, s string) Value {
	t.Helper()
	v, err := Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestParse_PreservesOrderAndLiterals(t *testing.T) {
	v := mustParse(t, `{"b": 1.50, "a": [true, null, "x"]}`)

	require.Equal(t, KindObject, v.Kind())
	members := v.Members()
	require.Len(t, members, 2)
	assert.Equal(t, "b", members[0].Key)
	assert.Equal(t, "1.50", members[0].Value.Text())

	arr, ok := v.Get("a")
	require.True(t, ok)
	require.Len(t, arr.Elems(), 3)
	assert.True(t, arr.Elems()[0].Bool())
	assert.Equal(t, KindNull, arr.Elems()[1].Kind())
}

func TestParse_DuplicateKeysLastWins(t *testing.T) {
	v := mustParse(t, `{"a":1,"b":{"x":1,"x":[2]},"a":2}`)

	members := v.Members()
	require.Len(t, members, 2)
	assert.Equal(t, "a", members[0].Key, "first position is kept")
	assert.Equal(t, "2", members[0].Value.Text())
	inner, _ := v.Get("b")
	require.Len(t, inner.Members(), 1)
	assert.Equal(t, KindArray, inner.Members()[0].Value.Kind())

	assert.Equal(t, `{"a":2}`, string(Canonicalize(mustParse(t, `{"a":1,"a":2}`))))
	assert.NotEqual(t,
		Canonicalize(mustParse(t, `{"a":1,"a":2}`)),
		Canonicalize(mustParse(t, `{"a":2,"a":1}`)))

	// Objects large enough to be indexed by a map behave the same.
	var sb strings.Builder
	sb.WriteString("{")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "\"k%02d\":%d,", i, i)
	}
	sb.WriteString("\"k03\":\"last\"}")
	big := mustParse(t, sb.String())
	require.Len(t, big.Members(), 40)
	k3, ok := big.Get("k03")
	require.True(t, ok)
	assert.Equal(t, "last", k3.Text())
	assert.Equal(t, "k03", big.Members()[3].Key)
}

func TestParse_RejectsTrailingData(t *testing.T) {
	_, err := Parse([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"sorted keys", `{"b":2,"a":1}`, `{"a":1,"b":2}`},
		{"nested", `{"z":{"y":[1,{"d":0,"c":null}]}}`, `{"z":{"y":[1,{"c":null,"d":0}]}}`},
		{"whitespace", "{ \"a\" :\n [ 1 , 2 ] }", `{"a":[1,2]}`},
		{"escapes", `{"s":"q\"b\\n\u000a\u0001"}`, `{"s":"q\"b\\n\n\u0001"}`},
		{"no html escaping", `{"s":"<a&b>"}`, `{"s":"<a&b>"}`},
		{"raw unicode", `{"s":"été"}`, `{"s":"été"}`},
		{"nfc", "{\"s\":\"e\u0301\"}", "{\"s\":\"\u00e9\"}"},
		{"bools", `{"t":true,"f":false}`, `{"f":false,"t":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Canonicalize(mustParse(t, tt.in))))
		})
	}
}

func TestCanonicalNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"-0", "0"},
		{"0.000", "0"},
		{"1", "1"},
		{"1.0", "1"},
		{"1e0", "1"},
		{"10e-1", "1"},
		{"100", "100"},
		{"1E2", "100"},
		{"-12.3400", "-12.34"},
		{"0.001", "0.001"},
		{"1e-7", "1e-7"},
		{"0.0000001", "1e-7"},
		{"1.5e-6", "0.0000015"},
		{"1e21", "1e21"},
		{"12345678901234567890123", "1.2345678901234567890123e22"},
		{"123456789012345678901", "123456789012345678901"},
		{"1e+3", "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalNumber(tt.in))
		})
	}
}

func TestHash_Idempotent(t *testing.T) {
	h, err := NewHasher(AlgorithmSHA256)
	require.NoError(t, err)

	v := mustParse(t, `{"id":1,"name":"a","tags":["x","y"]}`)
	d1, c1 := h.Hash(v)
	d2, _ := h.Hash(mustParse(t, string(c1)))

	assert.Equal(t, d1, d2)
}

func TestHash_KeyOrderInvariance(t *testing.T) {
	h, err := NewHasher(AlgorithmSHA256)
	require.NoError(t, err)

	d1, _ := h.Hash(mustParse(t, `{"id":1,"name":"a","meta":{"x":1,"y":2}}`))
	d2, _ := h.Hash(mustParse(t, `{"meta":{"y":2,"x":1},"name":"a","id":1.0}`))

	assert.Equal(t, d1, d2)
}

func TestHash_Sensitivity(t *testing.T) {
	h, err := NewHasher(AlgorithmSHA256)
	require.NoError(t, err)

	base, _ := h.Hash(mustParse(t, `{"id":1,"name":"a"}`))
	for _, variant := range []string{
		`{"id":2,"name":"a"}`,
		`{"id":1,"name":"b"}`,
		`{"id":1,"name":"a","extra":null}`,
		`{"id":"1","name":"a"}`,
		`{"id":1,"name":["a"]}`,
	} {
		d, _ := h.Hash(mustParse(t, variant))
		assert.NotEqual(t, base, d, variant)
	}
}

func TestNewHasher(t *testing.T) {
	sha, err := NewHasher("SHA256")
	require.NoError(t, err)
	b3, err := NewHasher(AlgorithmBLAKE3)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmBLAKE3, b3.Name())

	v := mustParse(t, `{"a":1}`)
	d1, _ := sha.Hash(v)
	d2, _ := b3.Hash(v)
	assert.NotEqual(t, d1, d2)

	var zero Hasher
	d3, _ := zero.Hash(v)
	assert.Equal(t, d1, d3)

	_, err = NewHasher("md5")
	assert.Error(t, err)
}

func TestDigest_Format(t *testing.T) {
	d := mustHasher(t).Sum([]byte("{}"))
	assert.Len(t, d.String(), 64)
	assert.Equal(t, d.String()[:8], d.Short())

	parsed, err := ParseDigest(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = ParseDigest("abcd")
	assert.Error(t, err)
}

func mustHasher(t *testing.T) Hasher {
	t.Helper()
	h, err := NewHasher(AlgorithmSHA256)
	require.NoError(t, err)
	return h
}

func TestLineExtractor_SkipsMalformedLine(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		if i == 499 {
			b.WriteString("{\"id\": broken\n")
			continue
		}
		fmt.Fprintf(&b, "{\"id\":%d}\n", i)
	}

	records, recordErrs, err := drain(t, NewLineExtractor(strings.NewReader(b.String())))

	require.NoError(t, err)
	assert.Len(t, records, 999)
	require.Len(t, recordErrs, 1)
	assert.Equal(t, int64(500), recordErrs[0].Position)
	assert.Equal(t, int64(998), records[998].Index)
}

func TestLineExtractor_BlankLinesAndNoTrailingNewline(t *testing.T) {
	input := "\ufeff{\"a\":1}\n\n   \r\n{\"a\":2}\r\n{\"a\":3}"
	records, recordErrs, err := drain(t, NewLineExtractor(strings.NewReader(input)))

	require.NoError(t, err)
	assert.Empty(t, recordErrs)
	require.Len(t, records, 3)
	assert.Equal(t, int64(5), records[2].Position)
}

func TestLineExtractor_RejectsNonObject(t *testing.T) {
	records, recordErrs, err := drain(t, NewLineExtractor(strings.NewReader("[1,2]\n{\"a\":1}\n")))

	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Len(t, recordErrs, 1)
}

type failingReader struct {
	data string
	read bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.read {
		f.read = true
		return copy(p, f.data), nil
	}
	return 0, errors.New("connection reset")
}

func TestLineExtractor_SourceReadError(t *testing.T) {
	ex := NewLineExtractor(&failingReader{data: "{\"a\":1}\n{\"a\":2}\n{\"a\""})
	records, _, err := drain(t, ex)

	assert.ErrorIs(t, err, ErrSourceRead)
	assert.Len(t, records, 2)
	assert.Equal(t, int64(2), ex.Count())
}

func TestArrayExtractor(t *testing.T) {
	t.Run("objects", func(t *testing.T) {
		input := ` [ {"a":"x,]"}, {"b":[1,{"c":"}"}]} ,{"d":"\"]"} ] `
		records, recordErrs, err := drain(t, NewArrayExtractor(strings.NewReader(input)))

		require.NoError(t, err)
		assert.Empty(t, recordErrs)
		require.Len(t, records, 3)
		v, _ := records[0].Value.Get("a")
		assert.Equal(t, "x,]", v.Text())
		v, _ = records[2].Value.Get("d")
		assert.Equal(t, "\"]", v.Text())
	})

	t.Run("empty", func(t *testing.T) {
		records, _, err := drain(t, NewArrayExtractor(strings.NewReader("[ ]")))
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("malformed element is skipped", func(t *testing.T) {
		input := `[{"a":1}, {"a": tru}, 7, {"a":3},]`
		records, recordErrs, err := drain(t, NewArrayExtractor(strings.NewReader(input)))

		require.NoError(t, err)
		assert.Len(t, records, 2)
		require.Len(t, recordErrs, 3)
		assert.Equal(t, int64(2), recordErrs[0].Position)
		assert.Equal(t, int64(1), records[1].Index)
	})

	t.Run("not an array", func(t *testing.T) {
		_, _, err := drain(t, NewArrayExtractor(strings.NewReader(`{"a":1}`)))
		assert.ErrorIs(t, err, ErrMalformedDocument)
	})

	t.Run("truncated", func(t *testing.T) {
		records, _, err := drain(t, NewArrayExtractor(strings.NewReader(`[{"a":1},{"a":2`)))
		assert.ErrorIs(t, err, ErrMalformedDocument)
		assert.Len(t, records, 1)
	})

	t.Run("empty input", func(t *testing.T) {
		_, _, err := drain(t, NewArrayExtractor(strings.NewReader("")))
		assert.ErrorIs(t, err, ErrMalformedDocument)
	})

	t.Run("data after the array", func(t *testing.T) {
		tests := []struct {
			name  string
			input string
			want  int
		}{
			{"second array", `[{"a":1}][{"b":2},{"c":3}]`, 1},
			{"stray object", "[{\"a\":1},{\"a\":2}]\n{\"b\":2}", 2},
			{"garbage after empty array", `[] x`, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				records, _, err := drain(t, NewArrayExtractor(strings.NewReader(tt.input)))
				assert.ErrorIs(t, err, ErrMalformedDocument)
				assert.ErrorContains(t, err, "after top-level array")
				assert.Len(t, records, tt.want)
			})
		}
	})

	t.Run("trailing whitespace", func(t *testing.T) {
		records, _, err := drain(t, NewArrayExtractor(strings.NewReader("[{\"a\":1}]\n\t \r\n")))
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestSingleExtractor(t *testing.T) {
	records, _, err := drain(t, NewSingleExtractor(strings.NewReader("\ufeff {\"a\":{\"b\":1}}\n")))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, _, err = drain(t, NewSingleExtractor(strings.NewReader(`[{"a":1}]`)))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, _, err = drain(t, NewSingleExtractor(strings.NewReader(`{"a":1}{"a":2}`)))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, _, err = drain(t, NewSingleExtractor(&failingReader{data: `{"a":`}))
	assert.ErrorIs(t, err, ErrSourceRead)
}

func TestTabularExtractor(t *testing.T) {
	input := "\ufeffid,name\n1,alpha\n2,\"be,ta\"\n3\n4,delta\n"
	records, recordErrs, err := drain(t, NewTabularExtractor(strings.NewReader(input), ','))

	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Len(t, recordErrs, 1)

	id, ok := records[0].Value.Get("id")
	require.True(t, ok)
	assert.Equal(t, KindString, id.Kind())
	assert.Equal(t, "1", id.Text())
	name, _ := records[1].Value.Get("name")
	assert.Equal(t, "be,ta", name.Text())
	assert.Equal(t, int64(5), records[2].Position)

	tsv, _, err := drain(t, NewTabularExtractor(strings.NewReader("a\tb\nx\ty\n"), '\t'))
	require.NoError(t, err)
	require.Len(t, tsv, 1)
	b, _ := tsv[0].Value.Get("b")
	assert.Equal(t, "y", b.Text())
}
