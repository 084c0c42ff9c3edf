// Package jsonvalue provides an ordered, closed JSON value model.
package jsonvalue

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindNull is the JSON null literal. It is the zero Kind.
	KindNull Kind = iota
	// KindBool is true or false.
	KindBool
	// KindNumber is a JSON number kept in its literal form.
	KindNumber
	// KindString is a JSON string.
	KindString
	// KindArray is an ordered sequence of values.
	KindArray
	// KindObject is an ordered set of uniquely keyed members.
	KindObject
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
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

// Value is an immutable-by-convention JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    json.Number
	s    string
	arr  []Value
	obj  *Object
}

// Null returns the JSON null value.
func Null() Value {
	return Value{}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number returns a number value from its literal text.
func Number(n json.Number) Value {
	return Value{kind: KindNumber, n: n}
}

// Int returns a number value for an integer.
func Int(i int64) Value {
	return Value{kind: KindNumber, n: json.Number(fmt.Sprintf("%d", i))}
}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Array returns an array value holding elems. The slice is not copied.
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, arr: elems}
}

// ObjectValue wraps obj into a Value. A nil obj yields an empty object.
func ObjectValue(obj *Object) Value {
	if obj == nil {
		obj = NewObject(0)
	}
	return Value{kind: KindObject, obj: obj}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns the number literal held by v.
func (v Value) AsNumber() (json.Number, bool) {
	return v.n, v.kind == KindNumber
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// AsArray returns the elements held by v. Callers must not modify the slice.
func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

// AsObject returns the object held by v.
func (v Value) AsObject() (*Object, bool) {
	return v.obj, v.kind == KindObject
}

// Equal reports whether v and other are structurally equal.
// Object member order is significant.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.obj.equal(other.obj)
	default:
		return false
	}
}

// FromAny converts a decoded interface{} tree into a Value.
// Map keys are sorted because Go maps carry no order.
func FromAny(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case float64:
		return numberFromMarshal(t)
	case float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return numberFromMarshal(t)
	case []interface{}:
		elems := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return Array(elems...), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject(len(keys))
		for _, k := range keys {
			ev, err := FromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			obj.Set(k, ev)
		}
		return ObjectValue(obj), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, x)
	}
}

func numberFromMarshal(x interface{}) (Value, error) {
	b, err := json.Marshal(x)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	return Number(json.Number(b)), nil
}

// Any converts v into the interface{} tree encoding/json would produce
// with UseNumber enabled. Object order is lost.
func (v Value) Any() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Any()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, v.obj.Len())
		for _, m := range v.obj.members {
			out[m.Key] = m.Value.Any()
		}
		return out
	default:
		return nil
	}
}
