package codegen

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/blockberries/cbuf/pkg/schema"
)

// GoGenerator generates Go source implementing the pkg/cbuf
// MessageCodec/NakedCodec contract for every struct and enum in a schema.
type GoGenerator struct{}

// NewGoGenerator creates a new Go code generator.
func NewGoGenerator() *GoGenerator {
	return &GoGenerator{}
}

// Language returns the target language.
func (g *GoGenerator) Language() Language {
	return LanguageGo
}

// FileExtension returns the file extension for generated files.
func (g *GoGenerator) FileExtension() string {
	return ".go"
}

// Generate produces Go code from a schema.
func (g *GoGenerator) Generate(w io.Writer, s *schema.Schema, opts Options) error {
	ctx := newGoContext(s, opts)

	tmpl, err := template.New("go").Funcs(ctx.funcMap()).Parse(goTemplate)
	if err != nil {
		return fmt.Errorf("codegen: parsing Go template: %w", err)
	}
	return tmpl.Execute(w, ctx)
}

func init() {
	Register(NewGoGenerator())
}

// goContext holds everything the template needs: the schema, the
// generation options, and the struct/enum -> Go type name maps computed up
// front so a field referencing another declared type can look its Go name
// up instead of re-deriving it ad hoc.
type goContext struct {
	Schema  *schema.Schema
	Options Options

	structs    []*schema.Struct
	enums      []*schema.Enum
	structName map[*schema.Struct]string
	enumName   map[*schema.Enum]string

	needsFmt  bool // enum String() methods use fmt.Sprintf
	needsJSON bool // at least one non-naked struct gets MarshalJSON
	needsCbuf bool // at least one struct exists to reference pkg/cbuf
}

func newGoContext(s *schema.Schema, opts Options) *goContext {
	c := &goContext{
		Schema:     s,
		Options:    opts,
		structName: make(map[*schema.Struct]string),
		enumName:   make(map[*schema.Enum]string),
	}

	namespaces := append([]*schema.Namespace{s.Global}, s.Namespaces...)
	for _, ns := range namespaces {
		for _, st := range ns.Structs {
			c.structs = append(c.structs, st)
			c.structName[st] = opts.TypePrefix + ToPascalCase(st.Name) + opts.TypeSuffix
		}
		for _, en := range ns.Enums {
			c.enums = append(c.enums, en)
			c.enumName[en] = opts.TypePrefix + ToPascalCase(en.Name) + opts.TypeSuffix
		}
	}

	c.needsFmt = len(c.enums) > 0
	c.needsCbuf = len(c.structs) > 0
	if opts.GenerateJSON {
		for _, st := range c.structs {
			if !st.Naked {
				c.needsJSON = true
				break
			}
		}
	}
	return c
}

func (c *goContext) funcMap() template.FuncMap {
	return template.FuncMap{
		"packageName":      c.packageName,
		"structs":          func() []*schema.Struct { return c.structs },
		"enums":            func() []*schema.Enum { return c.enums },
		"structDecl":       c.structDecl,
		"enumDecl":         c.enumDecl,
		"generateComments": func() bool { return c.Options.GenerateComments },
		"comment":          GoComment,
		"needsFmt":         func() bool { return c.needsFmt },
		"needsJSON":        func() bool { return c.needsJSON },
		"needsCbuf":        func() bool { return c.needsCbuf },
	}
}

func (c *goContext) packageName() string {
	if c.Options.Package != "" {
		return c.Options.Package
	}
	return "cbufgen"
}

// goTypeName returns the Go type name for a resolved struct or enum
// reference, qualifying it with an imported package selector when it was
// declared in an imported schema generated into a different Go package.
func (c *goContext) goTypeName(st *schema.Struct, en *schema.Enum) string {
	switch {
	case st != nil:
		if name, ok := c.structName[st]; ok {
			return name
		}
		return c.importedTypeName(st.NSName, ToPascalCase(st.Name))
	case en != nil:
		if name, ok := c.enumName[en]; ok {
			return name
		}
		return c.importedTypeName(en.NSName, ToPascalCase(en.Name))
	default:
		return "any"
	}
}

// importedTypeName handles a struct/enum that this schema's own namespaces
// don't declare: it must have arrived through #import. Options.ImportPaths
// maps the owning namespace to a Go import path; the generated reference
// selects into that package instead of assuming a local type.
func (c *goContext) importedTypeName(nsName, pascalName string) string {
	if path, ok := c.Options.ImportPaths[nsName]; ok {
		parts := strings.Split(path, "/")
		pkg := parts[len(parts)-1]
		return pkg + "." + pascalName
	}
	return pascalName
}

// qualifiedEnumName renders "ns::name", or just "name" in the global
// namespace, matching schema.Struct.QualifiedName's convention (enums
// don't carry that method themselves).
func qualifiedEnumName(en *schema.Enum) string {
	if en.NSName == "" || en.NSName == schema.GlobalNamespaceName {
		return en.Name
	}
	return en.NSName + "::" + en.Name
}

// enumDecl renders a full enum type declaration: the int32 type, its
// named constants, and a String method.
func (c *goContext) enumDecl(en *schema.Enum) string {
	var b strings.Builder
	name := c.goTypeName(nil, en)

	if c.Options.GenerateComments {
		fmt.Fprintf(&b, "// %s is generated from the %s schema enum.\n", name, qualifiedEnumName(en))
	}
	fmt.Fprintf(&b, "type %s int32\n\n", name)

	fmt.Fprintf(&b, "const (\n")
	for _, v := range en.Values {
		fmt.Fprintf(&b, "\t%s%s %s = %d\n", name, ToPascalCase(v.Name), name, v.Value)
	}
	fmt.Fprintf(&b, ")\n\n")

	fmt.Fprintf(&b, "func (v %s) String() string {\n\tswitch v {\n", name)
	for _, v := range en.Values {
		fmt.Fprintf(&b, "\tcase %s%s:\n\t\treturn %q\n", name, ToPascalCase(v.Name), v.Name)
	}
	fmt.Fprintf(&b, "\tdefault:\n\t\treturn fmt.Sprintf(\"%s(%%d)\", int32(v))\n\t}\n}\n", name)

	return b.String()
}

// structDecl renders a full struct declaration: the Go type, Init,
// EncodedSize, Encode, Decode, (for non-naked structs) TypeHash,
// TypeName and SchemaText, and (for Simple structs) Decode<Name>View.
func (c *goContext) structDecl(st *schema.Struct) string {
	g := &structGen{ctx: c, st: st, name: c.goTypeName(st, nil)}
	return g.render()
}

// structGen holds the per-struct state shared across the rendering passes
// for one declaration: its Go type name and a scratch counter used to name
// loop variables uniquely when a struct has more than one array field.
type structGen struct {
	ctx      *goContext
	st       *schema.Struct
	name     string
	loopVars int
}

func (g *structGen) render() string {
	var b strings.Builder

	if g.ctx.Options.GenerateComments {
		fmt.Fprintf(&b, "// %s is generated from the %s schema struct.\n", g.name, g.st.QualifiedName())
	}
	b.WriteString(g.typeDecl())
	b.WriteString("\n\n")
	b.WriteString(g.initMethod())
	b.WriteString("\n\n")
	b.WriteString(g.encodedSizeMethod())
	b.WriteString("\n\n")
	b.WriteString(g.encodeMethod())
	b.WriteString("\n\n")
	b.WriteString(g.decodeMethod())

	if !g.st.Naked {
		b.WriteString("\n\n")
		b.WriteString(g.typeHashMethod())
		b.WriteString("\n\n")
		b.WriteString(g.typeNameMethod())
		b.WriteString("\n\n")
		b.WriteString(g.schemaTextMethod())
	}

	if g.st.Simple {
		b.WriteString("\n\n")
		b.WriteString(g.decodeViewFunc())
	}

	if g.ctx.Options.GenerateJSON && !g.st.Naked {
		b.WriteString("\n\n")
		b.WriteString(g.marshalJSONMethod())
	}

	return b.String()
}

func (g *structGen) typeDecl() string {
	var b strings.Builder
	fmt.Fprintf(&b, "type %s struct {\n", g.name)
	for _, elem := range g.st.Elements {
		if g.ctx.Options.GenerateComments {
			fmt.Fprintf(&b, "\t// %s is a %s field.\n", ToPascalCase(elem.Name), elem.Type.String())
		}
		fmt.Fprintf(&b, "\t%s %s\n", ToPascalCase(elem.Name), g.goFieldType(elem))
	}
	b.WriteString("}")
	return b.String()
}

// goFieldType returns the Go type for an element, including its array
// wrapper: [N]T for static arrays, []T for dynamic and compact ones.
func (g *structGen) goFieldType(elem *schema.Element) string {
	base := g.goScalarType(elem)
	if elem.Array == nil {
		return base
	}
	switch elem.Array.Flavor {
	case schema.ArrayStatic:
		return fmt.Sprintf("[%d]%s", elem.Array.Size, base)
	default: // ArrayDynamic, ArrayCompact
		return "[]" + base
	}
}

func (g *structGen) goScalarType(elem *schema.Element) string {
	switch {
	case elem.ResolvedStruct != nil:
		return g.ctx.goTypeName(elem.ResolvedStruct, nil)
	case elem.ResolvedEnum != nil:
		return g.ctx.goTypeName(nil, elem.ResolvedEnum)
	default:
		return goPrimitiveType(elem.Type)
	}
}

func goPrimitiveType(t schema.ElementType) string {
	switch t {
	case schema.TypeU8:
		return "uint8"
	case schema.TypeU16:
		return "uint16"
	case schema.TypeU32:
		return "uint32"
	case schema.TypeU64:
		return "uint64"
	case schema.TypeI8:
		return "int8"
	case schema.TypeI16:
		return "int16"
	case schema.TypeI32:
		return "int32"
	case schema.TypeI64:
		return "int64"
	case schema.TypeF32:
		return "float32"
	case schema.TypeF64:
		return "float64"
	case schema.TypeBool:
		return "bool"
	case schema.TypeString, schema.TypeShortString:
		return "string"
	default:
		return "any"
	}
}

// initMethod resets the receiver to its schema-declared defaults: the zero
// value for everything, overridden by any explicit scalar default the
// schema gave a non-array element. Array-literal defaults are rare in
// practice and left as a documented simplification (the field stays at its
// Go zero value, an empty/zeroed array, rather than replaying the literal).
func (g *structGen) initMethod() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func (m *%s) Init() {\n\t*m = %s{}\n", g.name, g.name)
	for _, elem := range g.st.Elements {
		if elem.Default == nil || elem.Array != nil {
			continue
		}
		if lit, ok := goInitializerLiteral(elem); ok {
			fmt.Fprintf(&b, "\tm.%s = %s\n", ToPascalCase(elem.Name), lit)
		}
	}
	b.WriteString("}")
	return b.String()
}

func goInitializerLiteral(elem *schema.Element) (string, bool) {
	switch v := elem.Default.(type) {
	case *schema.IntInitializer:
		// An untyped integer literal assigns directly to a named enum
		// type too, so enum-valued and plain integer defaults render the
		// same way.
		return fmt.Sprintf("%d", v.Value), true
	case *schema.FloatInitializer:
		return fmt.Sprintf("%g", v.Value), true
	case *schema.StringInitializer:
		return fmt.Sprintf("%q", v.Value), true
	default:
		return "", false
	}
}

// encodedSizeMethod computes the body size in bytes. Simple structs fold
// to a compile-time constant; structs carrying a string, short_string
// (itself a fixed 16, but still walked uniformly), or dynamic/compact
// array must sum field sizes at call time.
func (g *structGen) encodedSizeMethod() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func (m *%s) EncodedSize() int {\n", g.name)

	if size, ok := schema.StaticSize(g.st); ok {
		fmt.Fprintf(&b, "\treturn %d\n}", size)
		return b.String()
	}

	b.WriteString("\tn := 0\n")
	for _, elem := range g.st.Elements {
		g.emitSizeField(&b, elem)
	}
	b.WriteString("\treturn n\n}")
	return b.String()
}

func (g *structGen) emitSizeField(b *strings.Builder, elem *schema.Element) {
	field := "m." + ToPascalCase(elem.Name)
	if elem.Array == nil {
		fmt.Fprintf(b, "\tn += %s\n", g.sizeExpr(elem, field))
		return
	}

	switch elem.Array.Flavor {
	case schema.ArrayStatic:
		if fixed, ok := fixedElemSize(elem); ok {
			fmt.Fprintf(b, "\tn += %d * %d\n", elem.Array.Size, fixed)
			return
		}
		v := g.nextLoopVar()
		fmt.Fprintf(b, "\tfor _, %s := range %s {\n\t\tn += %s\n\t}\n", v, field, g.sizeExpr(elem, v))
	default: // ArrayDynamic, ArrayCompact
		v := g.nextLoopVar()
		fmt.Fprintf(b, "\tn += 4\n\tfor _, %s := range %s {\n\t\tn += %s\n\t}\n", v, field, g.sizeExpr(elem, v))
	}
}

// fixedElemSize returns the per-element size when it doesn't depend on
// runtime content (everything but string and non-simple nested structs).
func fixedElemSize(elem *schema.Element) (int, bool) {
	switch {
	case elem.ResolvedEnum != nil:
		return 4, true
	case elem.ResolvedStruct != nil:
		size, ok := schema.StaticSize(elem.ResolvedStruct)
		if !ok {
			return 0, false
		}
		if !elem.ResolvedStruct.Naked {
			size += cbufPreambleSize
		}
		return size, true
	case elem.Type == schema.TypeString:
		return 0, false
	default:
		return schema.PrimitiveWireSize(elem.Type)
	}
}

// cbufPreambleSize mirrors pkg/cbuf.PreambleSize; codegen can't import
// pkg/cbuf (it would be a dependency cycle risk through generated code's
// own import of pkg/cbuf), so the constant is restated here.
const cbufPreambleSize = 24

// sizeExpr returns a Go expression computing the encoded size of one
// instance of elem's base type, where expr names the Go value (a field
// selector or loop variable).
func (g *structGen) sizeExpr(elem *schema.Element, expr string) string {
	switch {
	case elem.ResolvedEnum != nil:
		return "4"
	case elem.ResolvedStruct != nil:
		if elem.ResolvedStruct.Naked {
			return fmt.Sprintf("%s.EncodedSize()", expr)
		}
		return fmt.Sprintf("(24 + %s.EncodedSize())", expr)
	case elem.Type == schema.TypeString:
		return fmt.Sprintf("(4 + len(%s))", expr)
	case elem.Type == schema.TypeShortString:
		return "16"
	default:
		size, _ := schema.PrimitiveWireSize(elem.Type)
		return fmt.Sprintf("%d", size)
	}
}

func (g *structGen) nextLoopVar() string {
	g.loopVars++
	if g.loopVars == 1 {
		return "elem"
	}
	return fmt.Sprintf("elem%d", g.loopVars)
}

// encodeMethod appends the struct's body to a zero-length slice over buf's
// backing array, the same growth-within-capacity idiom pkg/cbuf.Metadata
// uses: buf is sized to exactly EncodedSize() by the caller, so every
// append writes in place without reallocating.
func (g *structGen) encodeMethod() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func (m *%s) Encode(buf []byte) (int, error) {\n", g.name)
	fmt.Fprintf(&b, "\tif len(buf) < m.EncodedSize() {\n\t\treturn 0, cbuf.ErrBufferTooSmall\n\t}\n")
	b.WriteString("\tout := buf[:0]\n")
	for _, elem := range g.st.Elements {
		g.emitEncodeField(&b, elem)
	}
	b.WriteString("\treturn len(out), nil\n}")
	return b.String()
}

func (g *structGen) emitEncodeField(b *strings.Builder, elem *schema.Element) {
	field := "m." + ToPascalCase(elem.Name)
	if elem.Array == nil {
		g.emitEncodeSingle(b, elem, field)
		return
	}

	switch elem.Array.Flavor {
	case schema.ArrayStatic:
		v := g.nextLoopVar()
		fmt.Fprintf(b, "\tfor _, %s := range %s {\n", v, field)
		g.emitEncodeSingleIndented(b, elem, v, "\t\t")
		b.WriteString("\t}\n")
	case schema.ArrayCompact:
		fmt.Fprintf(b, "\tif err := cbuf.CheckCompactCapacity(len(%s), %d); err != nil {\n\t\treturn 0, err\n\t}\n", field, elem.Array.Size)
		fmt.Fprintf(b, "\tout = cbuf.PutArrayCount(out, len(%s))\n", field)
		v := g.nextLoopVar()
		fmt.Fprintf(b, "\tfor _, %s := range %s {\n", v, field)
		g.emitEncodeSingleIndented(b, elem, v, "\t\t")
		b.WriteString("\t}\n")
	case schema.ArrayDynamic:
		fmt.Fprintf(b, "\tout = cbuf.PutArrayCount(out, len(%s))\n", field)
		v := g.nextLoopVar()
		fmt.Fprintf(b, "\tfor _, %s := range %s {\n", v, field)
		g.emitEncodeSingleIndented(b, elem, v, "\t\t")
		b.WriteString("\t}\n")
	}
}

// emitEncodeSingle encodes one non-array field. Its temporaries (fieldBuf,
// preBuf, shortBuf, ...) are wrapped in their own block so a second field
// reusing the same temporary name one statement later doesn't collide with
// it under Go's "no new variables on left side of :=" rule.
func (g *structGen) emitEncodeSingle(b *strings.Builder, elem *schema.Element, expr string) {
	b.WriteString("\t{\n")
	g.emitEncodeSingleIndented(b, elem, expr, "\t\t")
	b.WriteString("\t}\n")
}

func (g *structGen) emitEncodeSingleIndented(b *strings.Builder, elem *schema.Element, expr, indent string) {
	switch {
	case elem.ResolvedEnum != nil:
		fmt.Fprintf(b, "%sout = cbuf.AppendUint32(out, uint32(%s))\n", indent, expr)

	case elem.ResolvedStruct != nil:
		fmt.Fprintf(b, "%sfieldBuf := make([]byte, %s.EncodedSize())\n", indent, expr)
		fmt.Fprintf(b, "%sif _, err := %s.Encode(fieldBuf); err != nil {\n%s\treturn 0, err\n%s}\n", indent, expr, indent, indent)
		if elem.ResolvedStruct.Naked {
			fmt.Fprintf(b, "%sout = append(out, fieldBuf...)\n", indent)
		} else {
			fmt.Fprintf(b, "%spreBuf := make([]byte, cbuf.PreambleSize)\n", indent)
			fmt.Fprintf(b, "%sif err := cbuf.EncodePreamble(preBuf, %s.TypeHash(), len(fieldBuf), 0, 0); err != nil {\n%s\treturn 0, err\n%s}\n", indent, expr, indent, indent)
			fmt.Fprintf(b, "%sout = append(out, preBuf...)\n", indent)
			fmt.Fprintf(b, "%sout = append(out, fieldBuf...)\n", indent)
		}

	case elem.Type == schema.TypeString:
		fmt.Fprintf(b, "%sout = cbuf.PutString(out, %s)\n", indent, expr)

	case elem.Type == schema.TypeShortString:
		fmt.Fprintf(b, "%sshortBuf := make([]byte, cbuf.ShortStringWireSize)\n", indent)
		fmt.Fprintf(b, "%scbuf.PutShortString(shortBuf, %s)\n", indent, expr)
		fmt.Fprintf(b, "%sout = append(out, shortBuf...)\n", indent)

	case elem.Type == schema.TypeBool:
		fmt.Fprintf(b, "%sif %s {\n%s\tout = append(out, 1)\n%s} else {\n%s\tout = append(out, 0)\n%s}\n", indent, expr, indent, indent, indent, indent)

	case elem.Type == schema.TypeU8:
		fmt.Fprintf(b, "%sout = append(out, %s)\n", indent, expr)
	case elem.Type == schema.TypeI8:
		fmt.Fprintf(b, "%sout = append(out, byte(%s))\n", indent, expr)
	case elem.Type == schema.TypeU16:
		fmt.Fprintf(b, "%sout = cbuf.AppendUint16(out, %s)\n", indent, expr)
	case elem.Type == schema.TypeI16:
		fmt.Fprintf(b, "%sout = cbuf.AppendUint16(out, uint16(%s))\n", indent, expr)
	case elem.Type == schema.TypeU32:
		fmt.Fprintf(b, "%sout = cbuf.AppendUint32(out, %s)\n", indent, expr)
	case elem.Type == schema.TypeI32:
		fmt.Fprintf(b, "%sout = cbuf.AppendUint32(out, uint32(%s))\n", indent, expr)
	case elem.Type == schema.TypeU64:
		fmt.Fprintf(b, "%sout = cbuf.AppendUint64(out, %s)\n", indent, expr)
	case elem.Type == schema.TypeI64:
		fmt.Fprintf(b, "%sout = cbuf.AppendUint64(out, uint64(%s))\n", indent, expr)
	case elem.Type == schema.TypeF32:
		fmt.Fprintf(b, "%sout = cbuf.AppendFloat32(out, %s)\n", indent, expr)
	case elem.Type == schema.TypeF64:
		fmt.Fprintf(b, "%sout = cbuf.AppendFloat64(out, %s)\n", indent, expr)
	}
}

// decodeMethod reads the struct's body from buf[0:], tracking a cursor
// offset field by field, the same shape as pkg/cbuf.decodeStruct uses for
// the reflective decoder.
func (g *structGen) decodeMethod() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func (m *%s) Decode(buf []byte) (int, error) {\n\toff := 0\n", g.name)
	for _, elem := range g.st.Elements {
		g.emitDecodeField(&b, elem)
	}
	b.WriteString("\treturn off, nil\n}")
	return b.String()
}

func (g *structGen) emitDecodeField(b *strings.Builder, elem *schema.Element) {
	dest := "m." + ToPascalCase(elem.Name)
	if elem.Array == nil {
		// Wrapped in its own block for the same reason as emitEncodeSingle:
		// temporaries (v, err, n, pre, nested, ...) must not collide with
		// the next field's decode block reusing the same names.
		b.WriteString("\t{\n")
		g.emitDecodeSingle(b, elem, dest+" = ", "\t")
		b.WriteString("\t}\n")
		return
	}

	switch elem.Array.Flavor {
	case schema.ArrayStatic:
		idx := g.nextLoopVar()
		fmt.Fprintf(b, "\tfor %s := 0; %s < %d; %s++ {\n", idx, idx, elem.Array.Size, idx)
		g.emitDecodeSingle(b, elem, fmt.Sprintf("%s[%s] = ", dest, idx), "\t")
		b.WriteString("\t}\n")
	default: // ArrayDynamic, ArrayCompact
		b.WriteString("\t{\n")
		fmt.Fprintf(b, "\t\tcount, n, err := cbuf.GetArrayCount(buf[off:])\n\t\tif err != nil {\n\t\t\treturn 0, err\n\t\t}\n\t\toff += n\n")
		if elem.Array.Flavor == schema.ArrayCompact {
			fmt.Fprintf(b, "\t\tif err := cbuf.CheckCompactCapacity(count, %d); err != nil {\n\t\t\treturn 0, err\n\t\t}\n", elem.Array.Size)
		}
		fmt.Fprintf(b, "\t\t%s = make(%s, count)\n", dest, g.goFieldType(elem))
		idx := g.nextLoopVar()
		fmt.Fprintf(b, "\t\tfor %s := 0; %s < count; %s++ {\n", idx, idx, idx)
		g.emitDecodeSingle(b, elem, fmt.Sprintf("%s[%s] = ", dest, idx), "\t\t")
		b.WriteString("\t\t}\n")
		b.WriteString("\t}\n")
	}
}

// emitDecodeSingle decodes one instance of elem's base type starting at
// buf[off:], advances off, and assigns through assignPrefix (e.g. "m.X = "
// or "m.X[i] = "). indent is the extra indentation level for loop bodies.
func (g *structGen) emitDecodeSingle(b *strings.Builder, elem *schema.Element, assignPrefix, indent string) {
	switch {
	case elem.ResolvedEnum != nil:
		fmt.Fprintf(b, "%s\tv, err := cbuf.GetUint32(buf[off:])\n%s\tif err != nil {\n%s\t\treturn 0, err\n%s\t}\n", indent, indent, indent, indent)
		fmt.Fprintf(b, "%s\t%s%s(int32(v))\n%s\toff += 4\n", indent, assignPrefix, g.ctx.goTypeName(nil, elem.ResolvedEnum), indent)

	case elem.ResolvedStruct != nil:
		if elem.ResolvedStruct.Naked {
			fmt.Fprintf(b, "%s\tvar nested %s\n%s\tnested.Init()\n", indent, g.ctx.goTypeName(elem.ResolvedStruct, nil), indent)
			fmt.Fprintf(b, "%s\tn, err := nested.Decode(buf[off:])\n%s\tif err != nil {\n%s\t\treturn 0, err\n%s\t}\n", indent, indent, indent, indent)
			fmt.Fprintf(b, "%s\t%snested\n%s\toff += n\n", indent, assignPrefix, indent)
			return
		}
		fmt.Fprintf(b, "%s\tpre, err := cbuf.DecodePreamble(buf[off:])\n%s\tif err != nil {\n%s\t\treturn 0, err\n%s\t}\n", indent, indent, indent, indent)
		fmt.Fprintf(b, "%s\tvar nested %s\n%s\tnested.Init()\n", indent, g.ctx.goTypeName(elem.ResolvedStruct, nil), indent)
		fmt.Fprintf(b, "%s\tif _, err := nested.Decode(buf[off+cbuf.PreambleSize : off+int(pre.Size)]); err != nil {\n%s\t\treturn 0, err\n%s\t}\n", indent, indent, indent)
		fmt.Fprintf(b, "%s\t%snested\n%s\toff += int(pre.Size)\n", indent, assignPrefix, indent)

	case elem.Type == schema.TypeString:
		fmt.Fprintf(b, "%s\ts, n, err := cbuf.GetString(buf[off:])\n%s\tif err != nil {\n%s\t\treturn 0, err\n%s\t}\n", indent, indent, indent, indent)
		fmt.Fprintf(b, "%s\t%ss\n%s\toff += n\n", indent, assignPrefix, indent)

	case elem.Type == schema.TypeShortString:
		fmt.Fprintf(b, "%s\tif len(buf[off:]) < cbuf.ShortStringWireSize {\n%s\t\treturn 0, cbuf.ErrTruncated\n%s\t}\n", indent, indent, indent)
		fmt.Fprintf(b, "%s\t%scbuf.GetShortString(buf[off:])\n%s\toff += cbuf.ShortStringWireSize\n", indent, assignPrefix, indent)

	case elem.Type == schema.TypeBool:
		fmt.Fprintf(b, "%s\tif len(buf[off:]) < 1 {\n%s\t\treturn 0, cbuf.ErrTruncated\n%s\t}\n", indent, indent, indent)
		fmt.Fprintf(b, "%s\t%sbuf[off] != 0\n%s\toff += 1\n", indent, assignPrefix, indent)

	case elem.Type == schema.TypeU8:
		fmt.Fprintf(b, "%s\tif len(buf[off:]) < 1 {\n%s\t\treturn 0, cbuf.ErrTruncated\n%s\t}\n", indent, indent, indent)
		fmt.Fprintf(b, "%s\t%sbuf[off]\n%s\toff += 1\n", indent, assignPrefix, indent)
	case elem.Type == schema.TypeI8:
		fmt.Fprintf(b, "%s\tif len(buf[off:]) < 1 {\n%s\t\treturn 0, cbuf.ErrTruncated\n%s\t}\n", indent, indent, indent)
		fmt.Fprintf(b, "%s\t%sint8(buf[off])\n%s\toff += 1\n", indent, assignPrefix, indent)

	case elem.Type == schema.TypeU16, elem.Type == schema.TypeI16:
		fmt.Fprintf(b, "%s\tv, err := cbuf.GetUint16(buf[off:])\n%s\tif err != nil {\n%s\t\treturn 0, err\n%s\t}\n", indent, indent, indent, indent)
		if elem.Type == schema.TypeI16 {
			fmt.Fprintf(b, "%s\t%sint16(v)\n%s\toff += 2\n", indent, assignPrefix, indent)
		} else {
			fmt.Fprintf(b, "%s\t%sv\n%s\toff += 2\n", indent, assignPrefix, indent)
		}

	case elem.Type == schema.TypeU32, elem.Type == schema.TypeI32:
		fmt.Fprintf(b, "%s\tv, err := cbuf.GetUint32(buf[off:])\n%s\tif err != nil {\n%s\t\treturn 0, err\n%s\t}\n", indent, indent, indent, indent)
		if elem.Type == schema.TypeI32 {
			fmt.Fprintf(b, "%s\t%sint32(v)\n%s\toff += 4\n", indent, assignPrefix, indent)
		} else {
			fmt.Fprintf(b, "%s\t%sv\n%s\toff += 4\n", indent, assignPrefix, indent)
		}

	case elem.Type == schema.TypeU64, elem.Type == schema.TypeI64:
		fmt.Fprintf(b, "%s\tv, err := cbuf.GetUint64(buf[off:])\n%s\tif err != nil {\n%s\t\treturn 0, err\n%s\t}\n", indent, indent, indent, indent)
		if elem.Type == schema.TypeI64 {
			fmt.Fprintf(b, "%s\t%sint64(v)\n%s\toff += 8\n", indent, assignPrefix, indent)
		} else {
			fmt.Fprintf(b, "%s\t%sv\n%s\toff += 8\n", indent, assignPrefix, indent)
		}

	case elem.Type == schema.TypeF32:
		fmt.Fprintf(b, "%s\tv, err := cbuf.GetFloat32(buf[off:])\n%s\tif err != nil {\n%s\t\treturn 0, err\n%s\t}\n", indent, indent, indent, indent)
		fmt.Fprintf(b, "%s\t%sv\n%s\toff += 4\n", indent, assignPrefix, indent)

	case elem.Type == schema.TypeF64:
		fmt.Fprintf(b, "%s\tv, err := cbuf.GetFloat64(buf[off:])\n%s\tif err != nil {\n%s\t\treturn 0, err\n%s\t}\n", indent, indent, indent, indent)
		fmt.Fprintf(b, "%s\t%sv\n%s\toff += 8\n", indent, assignPrefix, indent)
	}
}

func (g *structGen) typeHashMethod() string {
	return fmt.Sprintf("func (m *%s) TypeHash() uint64 {\n\treturn 0x%X\n}", g.name, g.st.HashValue)
}

func (g *structGen) typeNameMethod() string {
	return fmt.Sprintf("func (m *%s) TypeName() string {\n\treturn %q\n}", g.name, g.st.QualifiedName())
}

// schemaTextMethod embeds a self-contained, re-parseable rendering of the
// struct's dependency closure so pkg/cbuf.Reflect can decode a frame of
// this type without this generated package's own source.
func (g *structGen) schemaTextMethod() string {
	text := EmbeddedSchemaText(g.st)
	return fmt.Sprintf("func (m *%s) SchemaText() string {\n\treturn %s\n}", g.name, goRawStringLiteral(text))
}

// decodeViewFunc provides a safe convenience constructor matching the
// MessageCodec contract's zero-copy intent: it allocates a fresh,
// Init()'d value and decodes into it, rather than an unsafe pointer cast
// over buf. Only Simple structs (fixed layout, no strings or dynamic
// arrays) get one, mirroring schema.StaticSize's own eligibility rule.
func (g *structGen) decodeViewFunc() string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Decode%sView decodes buf into a freshly allocated, Init()'d %s.\n", g.name, g.name)
	fmt.Fprintf(&b, "// It is a safe convenience constructor, not a zero-copy cast over buf.\n")
	fmt.Fprintf(&b, "func Decode%sView(buf []byte) (*%s, error) {\n", g.name, g.name)
	fmt.Fprintf(&b, "\tm := &%s{}\n\tm.Init()\n", g.name)
	b.WriteString("\tif _, err := m.Decode(buf); err != nil {\n\t\treturn nil, err\n\t}\n")
	b.WriteString("\treturn m, nil\n}")
	return b.String()
}

// marshalJSONMethod bridges through pkg/cbuf's reflective decoder rather
// than hand-rolling a field-by-field JSON encoder: it re-encodes the
// struct, then re-decodes the bytes reflectively against its own embedded
// schema text, and marshals the resulting Value tree.
func (g *structGen) marshalJSONMethod() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func (m *%s) MarshalJSON() ([]byte, error) {\n", g.name)
	b.WriteString("\tbuf := make([]byte, m.EncodedSize())\n")
	b.WriteString("\tif _, err := m.Encode(buf); err != nil {\n\t\treturn nil, err\n\t}\n")
	fmt.Fprintf(&b, "\tv, err := cbuf.Reflect(m.SchemaText(), m.TypeName(), buf)\n\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	b.WriteString("\treturn json.Marshal(v)\n}")
	return b.String()
}

// goRawStringLiteral renders s as a Go string literal, preferring a raw
// backtick literal (schema text is itself valid only if it never contains
// a backtick, which cbuf identifiers/literals never do) and falling back
// to a quoted literal otherwise.
func goRawStringLiteral(s string) string {
	if !strings.Contains(s, "`") {
		return "`" + s + "`"
	}
	return fmt.Sprintf("%q", s)
}

const goTemplate = `// Code generated by cbuf codegen from a schema. DO NOT EDIT.

package {{packageName}}

import (
{{if needsJSON}}	"encoding/json"
{{end}}{{if needsFmt}}	"fmt"
{{end}}
{{if needsCbuf}}	"github.com/blockberries/cbuf/pkg/cbuf"
{{end}})

{{range enums}}{{enumDecl .}}

{{end}}{{range structs}}{{structDecl .}}

{{end}}`
