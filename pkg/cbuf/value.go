package cbuf

import (
	"encoding/json"
	"fmt"
)

// ValueKind discriminates the shape of a reflectively-decoded Value.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindString
	KindStruct
	KindArray
	KindEnum
)

// Value is a generic, schema-driven decode of one field or struct,
// produced by the reflective decoder (C10) without any generated Go type.
// Leaves are primitives, nodes are structs, arrays are ordered lists.
type Value struct {
	Kind ValueKind
	Name string // field name, or struct/type name at the root

	// Scalar holds numeric/bool leaf values (as float64 or bool or
	// uint64, matching the original type's natural Go representation).
	Scalar any

	// String holds string/short_string leaf values.
	String string

	// EnumName holds the resolved enum member name, if known; EnumValue
	// always holds the raw integer value even when EnumName is empty
	// (unresolvable constant).
	EnumName  string
	EnumValue int32

	// Fields holds ordered (name, value) children of a struct node.
	Fields []*Value

	// Elements holds the ordered values of an array node.
	Elements []*Value
}

// MarshalJSON renders a Value as the JSON bridging format named in the
// module's purpose: structs become objects, arrays become arrays, scalars
// and strings become their natural JSON representation, enums render as
// their member name when resolvable and fall back to the raw integer.
func (v *Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindStruct:
		obj := make(map[string]json.RawMessage, len(v.Fields))
		for _, f := range v.Fields {
			b, err := f.MarshalJSON()
			if err != nil {
				return nil, err
			}
			obj[f.Name] = b
		}
		return json.Marshal(obj)
	case KindArray:
		arr := make([]json.RawMessage, len(v.Elements))
		for i, e := range v.Elements {
			b, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			arr[i] = b
		}
		return json.Marshal(arr)
	case KindString:
		return json.Marshal(v.String)
	case KindEnum:
		if v.EnumName != "" {
			return json.Marshal(v.EnumName)
		}
		return json.Marshal(v.EnumValue)
	case KindScalar:
		return json.Marshal(v.Scalar)
	default:
		return nil, fmt.Errorf("cbuf: unknown value kind %d", v.Kind)
	}
}

// Get returns the named field of a struct-kind Value, or nil if absent or
// if v is not a struct.
func (v *Value) Get(name string) *Value {
	if v.Kind != KindStruct {
		return nil
	}
	for _, f := range v.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}
