package schema

import (
	"fmt"
	"strings"
)

// ComputeAttributes fills in Simple, SupportsCompact, and HashValue for
// every struct reachable from namespaces. It must run after Resolve, since
// hash computation and the simple fixed point both need ResolvedStruct /
// ResolvedEnum to already be set. Structs are visited in whatever order
// they're given; Simple is recomputed until the fixed point settles, while
// each struct's hash is computed at most once and memoized on the struct
// itself (hashComputed), so the result does not depend on visit order.
func ComputeAttributes(namespaces []*Namespace) {
	var all []*Struct
	for _, ns := range namespaces {
		all = append(all, ns.Structs...)
	}

	// simple is a fixed point: a struct is simple unless it contains a
	// field that disqualifies it. Because struct-valued fields propagate
	// non-simpleness, iterate until nothing changes.
	for {
		changed := false
		for _, st := range all {
			before := st.Simple
			wasComputed := st.simpleComputed
			computeSimple(st)
			if !wasComputed || before != st.Simple {
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for _, st := range all {
		computeSupportsCompact(st)
	}

	for _, st := range all {
		computeHash(st)
	}
}

func computeSimple(st *Struct) {
	simple := true
	for _, elem := range st.Elements {
		if elementDisqualifiesSimple(elem) {
			simple = false
			break
		}
	}
	st.Simple = simple
	st.simpleComputed = true
}

func elementDisqualifiesSimple(elem *Element) bool {
	if elem.Type == TypeString {
		return true
	}
	if elem.Array != nil && (elem.Array.Flavor == ArrayDynamic || elem.Array.Flavor == ArrayCompact) {
		return true
	}
	if elem.ResolvedStruct != nil {
		if elem.ResolvedStruct.simpleComputed && !elem.ResolvedStruct.Simple {
			return true
		}
		if !elem.ResolvedStruct.simpleComputed {
			// Not yet computed this pass; treat optimistically as simple.
			// The fixed-point loop in ComputeAttributes will pick up any
			// later flip to non-simple on the next iteration.
			return false
		}
	}
	return false
}

func computeSupportsCompact(st *Struct) {
	for _, elem := range st.Elements {
		if elem.Array != nil && elem.Array.Flavor == ArrayCompact {
			st.SupportsCompact = true
			return
		}
	}
	st.SupportsCompact = false
}

func computeHash(st *Struct) {
	if st.hashComputed {
		return
	}
	// visiting guards against infinite recursion on a cycle that somehow
	// slipped past resolver.Resolve's cycle check; it should never fire
	// in practice since Resolve runs first and rejects cycles.
	if st.visiting {
		st.HashValue = 5381
		st.hashComputed = true
		return
	}
	st.visiting = true
	defer func() { st.visiting = false }()

	var b strings.Builder
	b.WriteString("struct ")
	if st.NSName != "" && st.NSName != GlobalNamespaceName {
		b.WriteString(st.NSName)
		b.WriteString("::")
	}
	b.WriteString(st.Name)
	b.WriteString(" \n")

	for _, elem := range st.Elements {
		if elem.Array != nil && elem.Array.Flavor == ArrayStatic {
			fmt.Fprintf(&b, "[%d] ", elem.Array.Size)
		} else if elem.Array != nil && elem.Array.Flavor == ArrayCompact {
			fmt.Fprintf(&b, "[%d] ", elem.Array.Size)
		}

		switch {
		case elem.ResolvedEnum != nil:
			fmt.Fprintf(&b, "%s %s;\n", elem.ResolvedEnum.Name, elem.Name)
		case elem.ResolvedStruct != nil:
			computeHash(elem.ResolvedStruct)
			fmt.Fprintf(&b, "%s %s;\n", hexUpperNoLeadingZeros(elem.ResolvedStruct.HashValue), elem.Name)
		default:
			fmt.Fprintf(&b, "%s %s; \n", elem.Type.String(), elem.Name)
		}
	}

	st.HashValue = djb2(b.String())
	st.hashComputed = true
}

// hexUpperNoLeadingZeros renders v as uppercase hex with no leading zeros
// (but "0" for v == 0), matching the canonical rendering rule for nested
// struct hashes.
func hexUpperNoLeadingZeros(v uint64) string {
	if v == 0 {
		return "0"
	}
	return fmt.Sprintf("%X", v)
}

// djb2 computes the djb2 string hash variant used for hash_value:
// h0 = 5381, h_i = (h_{i-1} << 5) + h_{i-1} + c_i (mod 2^64).
func djb2(s string) uint64 {
	h := uint64(5381)
	for i := 0; i < len(s); i++ {
		h = (h << 5) + h + uint64(s[i])
	}
	return h
}

// PrimitiveWireSize exposes primitiveWireSize for callers outside the
// package (the reflective decoder needs it to size fields without a
// generated codec).
func PrimitiveWireSize(t ElementType) (int, bool) {
	return primitiveWireSize(t)
}

// primitiveWireSize returns the fixed wire footprint of a primitive element
// type, or 0 for types with no fixed size (string, custom).
func primitiveWireSize(t ElementType) (int, bool) {
	switch t {
	case TypeU8, TypeI8, TypeBool:
		return 1, true
	case TypeU16, TypeI16:
		return 2, true
	case TypeU32, TypeI32, TypeF32:
		return 4, true
	case TypeU64, TypeI64, TypeF64:
		return 8, true
	case TypeShortString:
		return ShortStringWireSize, true
	default:
		return 0, false
	}
}

// StaticSize returns the struct's packed body size in bytes (not including
// the 24-byte preamble) when it can be determined purely from the schema,
// i.e. when the struct is simple. Returns ok=false for non-simple structs,
// whose size depends on runtime content (dynamic arrays, strings).
func StaticSize(st *Struct) (size int, ok bool) {
	if !st.simpleComputed || !st.Simple {
		return 0, false
	}

	total := 0
	for _, elem := range st.Elements {
		elemSize := 0
		switch {
		case elem.ResolvedEnum != nil:
			elemSize = 4
		case elem.ResolvedStruct != nil:
			s, sok := StaticSize(elem.ResolvedStruct)
			if !sok {
				return 0, false
			}
			elemSize = s
			if !elem.ResolvedStruct.Naked {
				elemSize += 24
			}
		default:
			s, pok := primitiveWireSize(elem.Type)
			if !pok {
				return 0, false
			}
			elemSize = s
		}

		count := 1
		if elem.Array != nil && elem.Array.Flavor == ArrayStatic {
			count = int(elem.Array.Size)
		}
		total += elemSize * count
	}

	return total, true
}

// CanonicalText returns the canonical textual rendering used to compute a
// struct's hash_value. Nested struct references collapse to a bare hex
// hash, so this text is not re-parseable; it exists purely as djb2 input,
// not for embedding in metadata frames (see pkg/codegen.EmbeddedSchemaText
// for the re-parseable form those carry).
func CanonicalText(st *Struct) string {
	var b strings.Builder
	b.WriteString("struct ")
	if st.NSName != "" && st.NSName != GlobalNamespaceName {
		b.WriteString(st.NSName)
		b.WriteString("::")
	}
	b.WriteString(st.Name)
	b.WriteString(" \n")

	for _, elem := range st.Elements {
		if elem.Array != nil && elem.Array.Flavor == ArrayStatic {
			fmt.Fprintf(&b, "[%d] ", elem.Array.Size)
		} else if elem.Array != nil && elem.Array.Flavor == ArrayCompact {
			fmt.Fprintf(&b, "[%d] ", elem.Array.Size)
		}

		switch {
		case elem.ResolvedEnum != nil:
			fmt.Fprintf(&b, "%s %s;\n", elem.ResolvedEnum.Name, elem.Name)
		case elem.ResolvedStruct != nil:
			fmt.Fprintf(&b, "%s %s;\n", hexUpperNoLeadingZeros(elem.ResolvedStruct.HashValue), elem.Name)
		default:
			fmt.Fprintf(&b, "%s %s; \n", elem.Type.String(), elem.Name)
		}
	}

	return b.String()
}
