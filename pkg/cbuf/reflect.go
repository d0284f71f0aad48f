package cbuf

import (
	"fmt"

	"github.com/blockberries/cbuf/internal/wire"
	"github.com/blockberries/cbuf/pkg/schema"
)

// Reflect decodes body against a struct named typeName found in
// schemaText, re-parsing and resolving schemaText with the same front-end
// (C1-C3) used at codegen time. It trusts the schema over any hash carried
// alongside body, so it tolerates hash drift between the writer and
// reader's compiled definitions of the same type name.
func Reflect(schemaText, typeName string, body []byte) (*Value, error) {
	parsed, errs := schema.ParseFile("<embedded>", schemaText)
	if len(errs) > 0 {
		return nil, fmt.Errorf("cbuf: reflective parse of embedded schema failed: %v", errs[0])
	}
	if rerrs := schema.Resolve(parsed); len(rerrs) > 0 {
		return nil, fmt.Errorf("cbuf: reflective resolve of embedded schema failed: %v", rerrs[0])
	}
	namespaces := append([]*schema.Namespace{parsed.Global}, parsed.Namespaces...)
	schema.ComputeAttributes(namespaces)

	st := findStruct(parsed, typeName)
	if st == nil {
		return nil, fmt.Errorf("cbuf: embedded schema has no struct named %q", typeName)
	}

	v, _, err := decodeStruct(body, st)
	return v, err
}

func findStruct(s *schema.Schema, name string) *schema.Struct {
	for _, st := range s.Global.Structs {
		if st.Name == name || st.QualifiedName() == name {
			return st
		}
	}
	for _, ns := range s.Namespaces {
		for _, st := range ns.Structs {
			if st.Name == name || st.QualifiedName() == name {
				return st
			}
		}
	}
	return nil
}

// decodeStruct decodes one struct's body (no preamble) starting at buf[0],
// returning the decoded Value and the number of bytes consumed.
func decodeStruct(buf []byte, st *schema.Struct) (*Value, int, error) {
	v := &Value{Kind: KindStruct, Name: st.Name}
	off := 0
	for _, elem := range st.Elements {
		fv, n, err := decodeElement(buf[off:], elem)
		if err != nil {
			return nil, 0, fmt.Errorf("cbuf: decoding field %s.%s: %w", st.Name, elem.Name, err)
		}
		fv.Name = elem.Name
		v.Fields = append(v.Fields, fv)
		off += n
	}
	return v, off, nil
}

// decodeElement decodes one struct element, including its array wrapper
// if any.
func decodeElement(buf []byte, elem *schema.Element) (*Value, int, error) {
	if elem.Array == nil || elem.Array.Flavor == schema.ArrayNone {
		return decodeSingle(buf, elem)
	}

	off := 0
	count := int(elem.Array.Size)
	if elem.Array.Flavor == schema.ArrayDynamic || elem.Array.Flavor == schema.ArrayCompact {
		c, n, err := GetArrayCount(buf)
		if err != nil {
			return nil, 0, err
		}
		count = c
		off = n
		if elem.Array.Flavor == schema.ArrayCompact {
			if err := CheckCompactCapacity(count, int(elem.Array.Size)); err != nil {
				return nil, 0, err
			}
		}
	}

	arr := &Value{Kind: KindArray}
	for i := 0; i < count; i++ {
		ev, n, err := decodeSingle(buf[off:], elem)
		if err != nil {
			return nil, 0, err
		}
		arr.Elements = append(arr.Elements, ev)
		off += n
	}
	return arr, off, nil
}

// decodeSingle decodes exactly one instance of elem's base type, ignoring
// its array-ness (the caller loops this for array elements).
func decodeSingle(buf []byte, elem *schema.Element) (*Value, int, error) {
	switch {
	case elem.ResolvedEnum != nil:
		if len(buf) < 4 {
			return nil, 0, ErrTruncated
		}
		raw, _ := wire.DecodeFixed32(buf[0:4])
		iv := int32(raw)
		name := ""
		for _, ev := range elem.ResolvedEnum.Values {
			if ev.Value == iv {
				name = ev.Name
				break
			}
		}
		return &Value{Kind: KindEnum, EnumValue: iv, EnumName: name}, 4, nil

	case elem.ResolvedStruct != nil:
		if elem.ResolvedStruct.Naked {
			return decodeStruct(buf, elem.ResolvedStruct)
		}
		pre, err := DecodePreamble(buf)
		if err != nil {
			return nil, 0, err
		}
		total := int(pre.Size)
		if total < PreambleSize || len(buf) < total {
			return nil, 0, ErrTruncated
		}
		v, _, err := decodeStruct(buf[PreambleSize:total], elem.ResolvedStruct)
		return v, total, err

	case elem.Type == schema.TypeString:
		s, n, err := GetString(buf)
		if err != nil {
			return nil, 0, err
		}
		return &Value{Kind: KindString, String: s}, n, nil

	case elem.Type == schema.TypeShortString:
		if len(buf) < ShortStringWireSize {
			return nil, 0, ErrTruncated
		}
		return &Value{Kind: KindString, String: GetShortString(buf)}, ShortStringWireSize, nil

	default:
		size, ok := schema.PrimitiveWireSize(elem.Type)
		if !ok {
			return nil, 0, fmt.Errorf("cbuf: unsupported element type %v", elem.Type)
		}
		if len(buf) < size {
			return nil, 0, ErrTruncated
		}
		scalar, err := decodeScalar(elem.Type, buf[:size])
		if err != nil {
			return nil, 0, err
		}
		return &Value{Kind: KindScalar, Scalar: scalar}, size, nil
	}
}

func decodeScalar(t schema.ElementType, buf []byte) (any, error) {
	switch t {
	case schema.TypeBool:
		return buf[0] != 0, nil
	case schema.TypeU8:
		return buf[0], nil
	case schema.TypeI8:
		return int8(buf[0]), nil
	case schema.TypeU16:
		v, _ := wire.DecodeFixed16(buf)
		return v, nil
	case schema.TypeI16:
		v, _ := wire.DecodeFixed16(buf)
		return int16(v), nil
	case schema.TypeU32:
		v, _ := wire.DecodeFixed32(buf)
		return v, nil
	case schema.TypeI32:
		v, _ := wire.DecodeFixed32(buf)
		return int32(v), nil
	case schema.TypeU64:
		v, _ := wire.DecodeFixed64(buf)
		return v, nil
	case schema.TypeI64:
		v, _ := wire.DecodeFixed64(buf)
		return int64(v), nil
	case schema.TypeF32:
		return wire.DecodeFloat32(buf)
	case schema.TypeF64:
		return wire.DecodeFloat64(buf)
	default:
		return nil, fmt.Errorf("cbuf: unsupported scalar type %v", t)
	}
}
