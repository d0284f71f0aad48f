// Package schema provides lexing, parsing, and symbol resolution for cbuf
// schema files: namespaces, enums, and structs that describe the wire layout
// of cbuf messages.
package schema

// Position represents a position in source code.
type Position struct {
	Filename string
	Line     int
	Column   int
	Offset   int
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	End() Position
}

// Schema represents the declarations parsed from one schema file, before
// imports have been merged and symbols resolved.
type Schema struct {
	Position   Position
	Imports    []*Import
	Namespaces []*Namespace
	Global     *Namespace // synthetic container for top-level declarations
	Comments   []*Comment
}

func (s *Schema) Pos() Position { return s.Position }
func (s *Schema) End() Position {
	if len(s.Namespaces) > 0 {
		return s.Namespaces[len(s.Namespaces)-1].End()
	}
	return s.Position
}

// GlobalNamespaceName is the synthetic namespace holding top-level
// declarations (structs and enums declared outside any `namespace` block).
const GlobalNamespaceName = "__global_namespace"

// Import represents a '#import "path"' directive.
type Import struct {
	Position Position
	EndPos   Position
	Path     string
}

func (i *Import) Pos() Position { return i.Position }
func (i *Import) End() Position { return i.EndPos }

// Namespace is a named container of enums and structs. Namespaces may not
// nest; the global namespace holds declarations outside any namespace block.
type Namespace struct {
	Position Position
	EndPos   Position
	Name     string
	Structs  []*Struct
	Enums    []*Enum
}

func (n *Namespace) Pos() Position { return n.Position }
func (n *Namespace) End() Position { return n.EndPos }

// ElementType is the tag identifying an element's primitive wire type.
type ElementType int

const (
	TypeU8 ElementType = iota
	TypeU16
	TypeU32
	TypeU64
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeF32
	TypeF64
	TypeBool
	TypeString
	TypeShortString
	TypeCustom
)

// String returns the schema-source spelling of the primitive type.
func (t ElementType) String() string {
	switch t {
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeShortString:
		return "short_string"
	case TypeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ShortStringWireSize is the fixed on-wire footprint of a short_string:
// 15 payload bytes plus a NUL terminator.
const ShortStringWireSize = 16

// ArrayFlavor distinguishes the three array kinds a schema element may have.
type ArrayFlavor int

const (
	// ArrayNone means the element is a scalar, not an array.
	ArrayNone ArrayFlavor = iota
	// ArrayStatic is a fixed-size array, `[N]`.
	ArrayStatic
	// ArrayDynamic is an unbounded array, `[]`.
	ArrayDynamic
	// ArrayCompact is a capacity-N array with a runtime count, `[N] @compact`.
	ArrayCompact
)

// ArraySpec describes an element's array suffix, if any.
type ArraySpec struct {
	Flavor ArrayFlavor
	Size   uint64 // capacity for ArrayStatic/ArrayCompact; unused otherwise
}

// Element is a named field inside a struct.
type Element struct {
	Position      Position
	EndPos        Position
	Name          string
	Type          ElementType
	CustomName    string // set when Type == TypeCustom
	CustomNS      string // optional namespace qualifier for CustomName
	Array         *ArraySpec
	Default       Initializer // nil if no default was given
	EnclosingName string      // name of the struct this element belongs to, for diagnostics

	// Resolved fills in during symbol resolution (§4.1 C3).
	ResolvedStruct *Struct
	ResolvedEnum   *Enum
}

func (e *Element) Pos() Position { return e.Position }
func (e *Element) End() Position { return e.EndPos }

// Initializer is the value a field defaults to: a scalar literal, a
// constant-expression over integers, an array literal, or a string literal.
type Initializer interface {
	Node
	initNode()
}

// IntInitializer is an integer constant expression (after evaluation).
type IntInitializer struct {
	Position Position
	EndPos   Position
	Value    int64
}

func (v *IntInitializer) Pos() Position { return v.Position }
func (v *IntInitializer) End() Position { return v.EndPos }
func (v *IntInitializer) initNode()     {}

// FloatInitializer is a floating-point literal.
type FloatInitializer struct {
	Position Position
	EndPos   Position
	Value    float64
}

func (v *FloatInitializer) Pos() Position { return v.Position }
func (v *FloatInitializer) End() Position { return v.EndPos }
func (v *FloatInitializer) initNode()     {}

// StringInitializer is a string literal.
type StringInitializer struct {
	Position Position
	EndPos   Position
	Value    string
}

func (v *StringInitializer) Pos() Position { return v.Position }
func (v *StringInitializer) End() Position { return v.EndPos }
func (v *StringInitializer) initNode()     {}

// ArrayInitializer is an array literal, `{ a, b, c }`. Only legal for
// built-in element types; struct-typed elements may never have one.
type ArrayInitializer struct {
	Position Position
	EndPos   Position
	Values   []Initializer
}

func (v *ArrayInitializer) Pos() Position { return v.Position }
func (v *ArrayInitializer) End() Position { return v.EndPos }
func (v *ArrayInitializer) initNode()     {}

// Struct is an ordered sequence of elements plus computed wire attributes.
type Struct struct {
	Position Position
	EndPos   Position
	Name     string
	Elements []*Element
	NSName   string // owning namespace name ("" / GlobalNamespaceName for global)
	Naked    bool   // declared with @naked: no preamble on the wire
	Comments []*Comment

	// Attributes computed by the front-end's attribute pass (§4.2).
	Simple          bool
	simpleComputed  bool
	SupportsCompact bool
	HashValue       uint64
	hashComputed    bool

	visiting bool // cycle-detection scratch flag, see detectCycles
}

func (s *Struct) Pos() Position { return s.Position }
func (s *Struct) End() Position { return s.EndPos }

// QualifiedName returns "namespace::name", or just "name" in the global
// namespace.
func (s *Struct) QualifiedName() string {
	if s.NSName == "" || s.NSName == GlobalNamespaceName {
		return s.Name
	}
	return s.NSName + "::" + s.Name
}

// Enum is a named ordered list of identifiers, optionally with explicit
// integer values. Enums are always 4 bytes (i32) on the wire.
type Enum struct {
	Position Position
	EndPos   Position
	Name     string
	NSName   string
	Values   []*EnumValue
	Comments []*Comment
}

func (e *Enum) Pos() Position { return e.Position }
func (e *Enum) End() Position { return e.EndPos }

// EnumValue is a single identifier = value pair.
type EnumValue struct {
	Position Position
	EndPos   Position
	Name     string
	Value    int32
	Explicit bool // true if the source gave an explicit '= N'
}

func (v *EnumValue) Pos() Position { return v.Position }
func (v *EnumValue) End() Position { return v.EndPos }

// Comment represents a comment in the schema source.
type Comment struct {
	Position Position
	EndPos   Position
	Text     string
	IsDoc    bool // true for /// doc comments
}

func (c *Comment) Pos() Position { return c.Position }
func (c *Comment) End() Position { return c.EndPos }

// primitiveTypeTokens maps lexer token types to AST element types.
var primitiveTypeTokens = map[TokenType]ElementType{
	TokenU8:       TypeU8,
	TokenU16:      TypeU16,
	TokenU32:      TypeU32,
	TokenU64:      TypeU64,
	TokenI8:       TypeI8,
	TokenI16:      TypeI16,
	TokenI32:      TypeI32,
	TokenI64:      TypeI64,
	TokenF32:      TypeF32,
	TokenF64:      TypeF64,
	TokenBool:     TypeBool,
	TokenString_:  TypeString,
	// TokenVoid intentionally excluded: void is never a valid element type.
	TokenShortStr: TypeShortString,
}
