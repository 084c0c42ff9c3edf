package remap

import (
	"github.com/vyrodovalexey/fieldremap/internal/jsonvalue"
)

// Remap returns a copy of v in which every object key found in mapping is
// renamed, at every nesting level. Values and shape are preserved, the
// input is never modified and primitives are returned as is.
//
// When two keys of one object map to the same name, the value of the later
// key wins and the name stays at the position of the first.
func Remap(v jsonvalue.Value, mapping FieldMapping) jsonvalue.Value {
	switch v.Kind() {
	case jsonvalue.KindArray:
		elems, _ := v.AsArray()
		out := make([]jsonvalue.Value, len(elems))
		for i, e := range elems {
			out[i] = Remap(e, mapping)
		}
		return jsonvalue.Array(out...)
	case jsonvalue.KindObject:
		obj, _ := v.AsObject()
		out := jsonvalue.NewObject(obj.Len())
		for _, m := range obj.Members() {
			key := m.Key
			if to, ok := mapping.Lookup(key); ok {
				key = to
			}
			out.Set(key, Remap(m.Value, mapping))
		}
		return jsonvalue.ObjectValue(out)
	case jsonvalue.KindNull, jsonvalue.KindBool, jsonvalue.KindNumber, jsonvalue.KindString:
		return v
	default:
		return v
	}
}
