package codegen

import (
	"github.com/blockberries/cbuf/pkg/schema"
)

// EmbeddedSchemaText renders a self-contained, re-parseable schema source
// for st and every struct/enum it depends on, transitively. The generated
// codec embeds this text verbatim as the schema_text carried in a metadata
// frame (§4.5), so pkg/cbuf.Reflect can parse and resolve it on its own,
// without access to the .cbuf file st was originally declared in.
//
// schema.CanonicalText renders a struct for hash computation only: nested
// struct references collapse to a bare hex hash, which schema.ParseFile
// cannot read back. This walks st's dependency graph instead and hands the
// collected, still-fully-typed declarations to schema.Writer, the same
// pretty-printer used for debug dumps and round-trip tests.
func EmbeddedSchemaText(st *schema.Struct) string {
	c := &schemaCollector{
		structsByNS: make(map[string][]*schema.Struct),
		enumsByNS:   make(map[string][]*schema.Enum),
		seenStruct:  make(map[*schema.Struct]bool),
		seenEnum:    make(map[*schema.Enum]bool),
	}
	c.visitStruct(st)

	synth := &schema.Schema{Global: &schema.Namespace{Name: schema.GlobalNamespaceName}}
	for _, ns := range c.order {
		if ns == "" || ns == schema.GlobalNamespaceName {
			synth.Global.Structs = c.structsByNS[ns]
			synth.Global.Enums = c.enumsByNS[ns]
			continue
		}
		synth.Namespaces = append(synth.Namespaces, &schema.Namespace{
			Name:    ns,
			Structs: c.structsByNS[ns],
			Enums:   c.enumsByNS[ns],
		})
	}
	return schema.FormatSchema(synth)
}

// schemaCollector walks a struct's dependency graph, recording each
// struct/enum exactly once, grouped by namespace, dependencies before
// dependents.
type schemaCollector struct {
	structsByNS map[string][]*schema.Struct
	enumsByNS   map[string][]*schema.Enum
	seenStruct  map[*schema.Struct]bool
	seenEnum    map[*schema.Enum]bool
	order       []string
}

func (c *schemaCollector) visitStruct(st *schema.Struct) {
	if c.seenStruct[st] {
		return
	}
	c.seenStruct[st] = true
	for _, elem := range st.Elements {
		if elem.ResolvedStruct != nil {
			c.visitStruct(elem.ResolvedStruct)
		}
		if elem.ResolvedEnum != nil {
			c.visitEnum(elem.ResolvedEnum)
		}
	}
	c.structsByNS[st.NSName] = append(c.structsByNS[st.NSName], st)
	c.noteNamespace(st.NSName)
}

func (c *schemaCollector) visitEnum(en *schema.Enum) {
	if c.seenEnum[en] {
		return
	}
	c.seenEnum[en] = true
	c.enumsByNS[en.NSName] = append(c.enumsByNS[en.NSName], en)
	c.noteNamespace(en.NSName)
}

func (c *schemaCollector) noteNamespace(ns string) {
	for _, existing := range c.order {
		if existing == ns {
			return
		}
	}
	c.order = append(c.order, ns)
}
