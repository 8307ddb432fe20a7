package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the JSON type name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one key/value pair of an object, in document order.
type Member struct {
	Key   string
	Value Value
}

// Value is a JSON value decoded without losing key order or number literals.
// The zero Value is null.
type Value struct {
	kind    Kind
	flag    bool
	text    string
	elems   []Value
	members []Member
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Number wraps a JSON number literal. The literal is kept verbatim and only
// normalised during canonicalization.
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Array wraps an ordered sequence.
func Array(elems ...Value) Value { return Value{kind: KindArray, elems: elems} }

// Object wraps an ordered mapping.
func Object(members ...Member) Value { return Value{kind: KindObject, members: members} }

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean payload; false for any other kind.
func (v Value) Bool() bool { return v.kind == KindBool && v.flag }

// Text returns the string payload, or the number literal for numbers.
func (v Value) Text() string { return v.text }

// Elems returns the elements of an array.
func (v Value) Elems() []Value { return v.elems }

// Members returns the members of an object in document order. Decoded
// objects hold each key once: a repeated key keeps the position of its first
// occurrence and the value of its last.
func (v Value) Members() []Member { return v.members }

// Get returns the member named key.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// errTrailingData reports extra tokens after a complete value.
var errTrailingData = errors.New("unexpected data after top-level value")

// decodeValue reads exactly one value from dec. The decoder must have
// UseNumber enabled so number literals survive untouched.
func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return valueFromToken(dec, tok)
}

// linearScanMembers is the object size up to which duplicate keys are found
// by scanning instead of through a map.
const linearScanMembers = 16

func memberIndex(members []Member, index map[string]int, key string) (int, bool) {
	if index != nil {
		i, ok := index[key]
		return i, ok
	}
	for i, m := range members {
		if m.Key == key {
			return i, true
		}
	}
	return 0, false
}

func valueFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var members []Member
			var index map[string]int
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T, not a string", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				// A repeated key keeps its first position and takes the
				// last value.
				if i, ok := memberIndex(members, index, key); ok {
					members[i].Value = val
					continue
				}
				members = append(members, Member{Key: key, Value: val})
				switch {
				case index != nil:
					index[key] = len(members) - 1
				case len(members) > linearScanMembers:
					index = make(map[string]int, len(members)*2)
					for i, m := range members {
						index[m.Key] = i
					}
				}
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Object(members...), nil
		case '[':
			var elems []Value
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				elems = append(elems, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Array(elems...), nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", rune(t))
		}
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case float64:
		return Number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return Value{}, fmt.Errorf("unexpected token %T", tok)
	}
}

// decodeDocument decodes one complete value from r and rejects trailing data.
func decodeDocument(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return Value{}, err
		}
		return Value{}, errTrailingData
	}
	return v, nil
}

// Parse decodes a single JSON document into a Value.
func Parse(data []byte) (Value, error) {
	return decodeDocument(bytes.NewReader(data))
}
