package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxNestingDepth bounds recursion while decoding untrusted input.
const maxNestingDepth = 10000

// Decoding errors.
var (
	// ErrEmptyInput indicates that no JSON value was found.
	ErrEmptyInput = errors.New("empty JSON input")

	// ErrTrailingData indicates extra data after the first JSON value.
	ErrTrailingData = errors.New("trailing data after JSON value")

	// ErrTooDeep indicates that the input exceeds the nesting limit.
	ErrTooDeep = errors.New("JSON nesting too deep")

	// ErrUnsupportedType indicates a Go value with no JSON representation.
	ErrUnsupportedType = errors.New("unsupported type for JSON value")
)

// Parse decodes exactly one JSON value from data, preserving object
// member order and number literals.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return Value{}, ErrEmptyInput
	}
	if err != nil {
		return Value{}, err
	}

	v, err := decodeValue(dec, tok, 0)
	if err != nil {
		return Value{}, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, ErrTrailingData
	}
	return v, nil
}

// decodeValue builds a Value starting from an already consumed token.
func decodeValue(dec *json.Decoder, tok json.Token, depth int) (Value, error) {
	if depth > maxNestingDepth {
		return Value{}, ErrTooDeep
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			return decodeArray(dec, depth)
		case '{':
			return decodeObject(dec, depth)
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}

func decodeArray(dec *json.Decoder, depth int) (Value, error) {
	elems := make([]Value, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		elem, err := decodeValue(dec, tok, depth+1)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, elem)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Array(elems...), nil
}

func decodeObject(dec *json.Decoder, depth int) (Value, error) {
	obj := NewObject(0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Value{}, fmt.Errorf("unexpected object key token %v", keyTok)
		}

		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		val, err := decodeValue(dec, tok, depth+1)
		if err != nil {
			return Value{}, err
		}
		// Duplicate keys keep the first position and the last value.
		obj.Set(key, val)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return ObjectValue(obj), nil
}

// Encode returns the compact JSON encoding of v with members in order.
// HTML characters are not escaped.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v)
	return buf.Bytes()
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return Encode(v), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String returns the JSON encoding of v.
func (v Value) String() string {
	return string(Encode(v))
}

func writeValue(buf *bytes.Buffer, v Value) {
	switch v.kind {
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if v.n == "" {
			buf.WriteByte('0')
		} else {
			buf.WriteString(string(v.n))
		}
	case KindString:
		writeString(buf, v.s)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeValue(buf, e)
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.obj.Members() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, m.Key)
			buf.WriteByte(':')
			writeValue(buf, m.Value)
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
}

func writeString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
}
