package record

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const hexDigits = "0123456789abcdef"

// Canonicalize returns the canonical serialization of v: object keys sorted
// by their UTF-8 bytes, no insignificant whitespace, strings in NFC with
// minimal escaping and numbers in a single normal form. Two values that are
// equal under JSON semantics produce identical bytes.
func Canonicalize(v Value) []byte {
	return AppendCanonical(nil, v)
}

// AppendCanonical appends the canonical serialization of v to dst.
func AppendCanonical(dst []byte, v Value) []byte {
	switch v.kind {
	case KindNull:
		return append(dst, "null"...)
	case KindBool:
		if v.flag {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case KindNumber:
		return append(dst, canonicalNumber(v.text)...)
	case KindString:
		return appendString(dst, v.text)
	case KindArray:
		dst = append(dst, '[')
		for i, e := range v.elems {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendCanonical(dst, e)
		}
		return append(dst, ']')
	case KindObject:
		return appendObject(dst, v.members)
	default:
		return append(dst, "null"...)
	}
}

type canonicalMember struct {
	key   []byte
	value []byte
}

func appendObject(dst []byte, members []Member) []byte {
	encoded := make([]canonicalMember, len(members))
	for i, m := range members {
		encoded[i] = canonicalMember{
			key:   appendString(nil, m.Key),
			value: AppendCanonical(nil, m.Value),
		}
	}
	// Keys that only differ in normalisation collapse onto the same bytes;
	// the value breaks the tie so the order stays total.
	sort.Slice(encoded, func(i, j int) bool {
		if c := bytes.Compare(encoded[i].key, encoded[j].key); c != 0 {
			return c < 0
		}
		return bytes.Compare(encoded[i].value, encoded[j].value) < 0
	})

	dst = append(dst, '{')
	for i, m := range encoded {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, m.key...)
		dst = append(dst, ':')
		dst = append(dst, m.value...)
	}
	return append(dst, '}')
}

func appendString(dst []byte, s string) []byte {
	s = norm.NFC.String(s)
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		dst = append(dst, s[start:i]...)
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
		}
		start = i + 1
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}

// canonicalNumber rewrites a JSON number literal so that numerically equal
// literals (1, 1.0, 1e0, 10e-1) share one spelling. The conversion is exact;
// no floating point rounding is involved. Literals that cannot be parsed are
// returned unchanged.
func canonicalNumber(lit string) string {
	s := lit
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	mantissa := s
	exp := int64(0)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa = s[:i]
		e, err := strconv.ParseInt(strings.TrimPrefix(s[i+1:], "+"), 10, 32)
		if err != nil {
			return lit
		}
		exp = e
	}

	intPart, fracPart := mantissa, ""
	if i := strings.IndexByte(mantissa, '.'); i >= 0 {
		intPart, fracPart = mantissa[:i], mantissa[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return lit
	}
	digits := intPart + fracPart
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return lit
		}
	}
	exp -= int64(len(fracPart))

	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0"
	}
	trimmed := strings.TrimRight(digits, "0")
	exp += int64(len(digits) - len(trimmed))
	digits = trimmed

	// adjusted is the exponent of the leading digit in scientific notation.
	adjusted := exp + int64(len(digits)) - 1

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	switch {
	case adjusted >= 21 || adjusted <= -7:
		b.WriteByte(digits[0])
		if len(digits) > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		b.WriteString(strconv.FormatInt(adjusted, 10))
	case exp >= 0:
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", int(exp)))
	default:
		point := int64(len(digits)) + exp
		if point > 0 {
			b.WriteString(digits[:point])
			b.WriteByte('.')
			b.WriteString(digits[point:])
		} else {
			b.WriteString("0.")
			b.WriteString(strings.Repeat("0", int(-point)))
			b.WriteString(digits)
		}
	}
	return b.String()
}
