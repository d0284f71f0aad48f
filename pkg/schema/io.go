package schema

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Loader loads a schema file and every file it transitively imports,
// merging them into one resolved, attribute-computed Schema-equivalent
// view: the returned root Schema's Global/Namespaces only ever contain its
// own declarations, but every import is fully loaded and symbol-resolved
// against the combined set before ComputeAttributes runs.
type Loader struct {
	// SearchPaths are directories searched for '#import' targets, in
	// order, after the importing file's own directory. Populated from
	// repeated -I flags.
	SearchPaths []string

	loaded       map[string]*Schema
	loadedErrors map[string][]error
}

// NewLoader creates a new schema loader with the given search paths.
func NewLoader(searchPaths ...string) *Loader {
	return &Loader{
		SearchPaths:  searchPaths,
		loaded:       make(map[string]*Schema),
		loadedErrors: make(map[string][]error),
	}
}

// LoadFile loads a schema file and all its imports, then resolves symbols
// and computes struct attributes across the combined namespace set.
func (l *Loader) LoadFile(path string) (*Schema, []error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to resolve path: %w", err)}
	}

	schema, errs := l.loadFileInternal(absPath, nil)
	if len(errs) > 0 || schema == nil {
		return schema, errs
	}

	namespaces := l.allNamespaces(schema, make(map[*Schema]bool))

	// Resolve over the combined set so references into imported files bind;
	// every file's top-level declarations share one global namespace.
	combined := &Schema{Position: schema.Position, Global: &Namespace{Name: GlobalNamespaceName}}
	for _, ns := range namespaces {
		if ns.Name == GlobalNamespaceName {
			combined.Global.Structs = append(combined.Global.Structs, ns.Structs...)
			combined.Global.Enums = append(combined.Global.Enums, ns.Enums...)
			continue
		}
		combined.Namespaces = append(combined.Namespaces, ns)
	}

	for _, e := range Resolve(combined) {
		errs = append(errs, e)
	}
	if len(errs) > 0 {
		return schema, errs
	}

	ComputeAttributes(namespaces)
	return schema, errs
}

// allNamespaces flattens a schema and every schema it (transitively)
// imports into one namespace list, deduplicating schemas already visited.
func (l *Loader) allNamespaces(s *Schema, seen map[*Schema]bool) []*Namespace {
	if seen[s] {
		return nil
	}
	seen[s] = true

	var out []*Namespace
	if len(s.Global.Structs) > 0 || len(s.Global.Enums) > 0 {
		out = append(out, s.Global)
	}
	out = append(out, s.Namespaces...)

	baseDir := filepath.Dir(s.Position.Filename)
	for _, imp := range s.Imports {
		importPath := l.resolveImportPath(imp.Path, baseDir)
		if importPath == "" {
			continue
		}
		if imported, ok := l.loaded[importPath]; ok {
			out = append(out, l.allNamespaces(imported, seen)...)
		}
	}
	return out
}

// loadFileInternal loads a schema file, tracking the import chain to
// detect cycles. Parsing only; symbol resolution happens once at the top
// of LoadFile across the whole merged namespace set.
func (l *Loader) loadFileInternal(absPath string, importChain []string) (*Schema, []error) {
	for _, p := range importChain {
		if p == absPath {
			return nil, []error{fmt.Errorf("circular import detected: %s", strings.Join(append(importChain, absPath), " -> "))}
		}
	}

	if schema, ok := l.loaded[absPath]; ok {
		return schema, l.loadedErrors[absPath]
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read file %s: %w", absPath, err)}
	}

	schema, parseErrors := ParseFile(absPath, string(content))
	var allErrors []error
	for _, e := range parseErrors {
		allErrors = append(allErrors, e)
	}

	l.loaded[absPath] = schema
	if len(parseErrors) > 0 {
		l.loadedErrors[absPath] = allErrors
		return schema, allErrors
	}

	baseDir := filepath.Dir(absPath)
	newChain := append(importChain, absPath)

	for _, imp := range schema.Imports {
		importPath := l.resolveImportPath(imp.Path, baseDir)
		if importPath == "" {
			allErrors = append(allErrors, fmt.Errorf("%s:%d: import not found: %s",
				absPath, imp.Position.Line, imp.Path))
			continue
		}

		_, importErrors := l.loadFileInternal(importPath, newChain)
		allErrors = append(allErrors, importErrors...)
	}

	l.loadedErrors[absPath] = allErrors
	return schema, allErrors
}

// resolveImportPath resolves an import path relative to the importing
// file's directory first, then each configured search path in order.
func (l *Loader) resolveImportPath(importPath, baseDir string) string {
	candidate := filepath.Join(baseDir, importPath)
	if _, err := os.Stat(candidate); err == nil {
		absPath, _ := filepath.Abs(candidate)
		return absPath
	}

	for _, searchPath := range l.SearchPaths {
		candidate := filepath.Join(searchPath, importPath)
		if _, err := os.Stat(candidate); err == nil {
			absPath, _ := filepath.Abs(candidate)
			return absPath
		}
	}

	return ""
}

// GetSchema returns a loaded schema by its path.
func (l *Loader) GetSchema(path string) *Schema {
	absPath, _ := filepath.Abs(path)
	return l.loaded[absPath]
}

// AllSchemas returns every schema loaded so far, keyed by absolute path.
func (l *Loader) AllSchemas() map[string]*Schema {
	result := make(map[string]*Schema, len(l.loaded))
	for k, v := range l.loaded {
		result[k] = v
	}
	return result
}

// Writer pretty-prints a Schema back into cbuf source syntax. This is
// distinct from CanonicalText: Writer produces human-readable, re-parsable
// source (used for debug dumps, round-trip tests, and the schema text that
// generated code embeds for metadata frames); CanonicalText produces the
// exact byte sequence the hash algorithm requires.
type Writer struct {
	indent string
}

// NewWriter creates a new schema writer using two-space indentation.
func NewWriter() *Writer {
	return &Writer{indent: "  "}
}

// SetIndent sets the indentation string.
func (w *Writer) SetIndent(indent string) {
	w.indent = indent
}

// WriteSchema writes every declaration in schema, namespaces last.
func (w *Writer) WriteSchema(out io.Writer, schema *Schema) error {
	for _, imp := range schema.Imports {
		fmt.Fprintf(out, "#import %q\n", imp.Path)
	}
	if len(schema.Imports) > 0 {
		fmt.Fprintln(out)
	}

	for _, st := range schema.Global.Structs {
		w.writeStruct(out, st, "")
		fmt.Fprintln(out)
	}
	for _, en := range schema.Global.Enums {
		w.writeEnum(out, en, "")
		fmt.Fprintln(out)
	}

	for _, ns := range schema.Namespaces {
		fmt.Fprintf(out, "namespace %s {\n", ns.Name)
		for _, st := range ns.Structs {
			w.writeStruct(out, st, w.indent)
		}
		for _, en := range ns.Enums {
			w.writeEnum(out, en, w.indent)
		}
		fmt.Fprintln(out, "}")
	}

	return nil
}

func (w *Writer) writeStruct(out io.Writer, st *Struct, prefix string) {
	for _, c := range st.Comments {
		if c.IsDoc {
			fmt.Fprintf(out, "%s/// %s\n", prefix, c.Text)
		}
	}

	if st.Naked {
		fmt.Fprintf(out, "%sstruct %s @naked {\n", prefix, st.Name)
	} else {
		fmt.Fprintf(out, "%sstruct %s {\n", prefix, st.Name)
	}

	for _, elem := range st.Elements {
		w.writeElement(out, elem, prefix+w.indent)
	}

	fmt.Fprintf(out, "%s}\n", prefix)
}

func (w *Writer) writeElement(out io.Writer, elem *Element, prefix string) {
	typeStr := elem.Type.String()
	if elem.Type == TypeCustom {
		if elem.CustomNS != "" {
			typeStr = elem.CustomNS + "::" + elem.CustomName
		} else {
			typeStr = elem.CustomName
		}
	}

	arrStr := ""
	compactSuffix := ""
	if elem.Array != nil {
		switch elem.Array.Flavor {
		case ArrayStatic:
			arrStr = fmt.Sprintf("[%d]", elem.Array.Size)
		case ArrayCompact:
			arrStr = fmt.Sprintf("[%d]", elem.Array.Size)
			compactSuffix = " @compact"
		case ArrayDynamic:
			arrStr = "[]"
		}
	}

	defStr := ""
	if elem.Default != nil {
		defStr = " = " + formatInitializer(elem.Default)
	}

	fmt.Fprintf(out, "%s%s %s%s%s%s;\n", prefix, typeStr, elem.Name, arrStr, compactSuffix, defStr)
}

func formatInitializer(init Initializer) string {
	switch v := init.(type) {
	case *IntInitializer:
		return fmt.Sprintf("%d", v.Value)
	case *FloatInitializer:
		return fmt.Sprintf("%g", v.Value)
	case *StringInitializer:
		return fmt.Sprintf("%q", v.Value)
	case *ArrayInitializer:
		var parts []string
		for _, e := range v.Values {
			parts = append(parts, formatInitializer(e))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return ""
	}
}

func (w *Writer) writeEnum(out io.Writer, en *Enum, prefix string) {
	for _, c := range en.Comments {
		if c.IsDoc {
			fmt.Fprintf(out, "%s/// %s\n", prefix, c.Text)
		}
	}

	fmt.Fprintf(out, "%senum %s {\n", prefix, en.Name)
	for _, val := range en.Values {
		if val.Explicit {
			fmt.Fprintf(out, "%s%s%s = %d,\n", prefix, w.indent, val.Name, val.Value)
		} else {
			fmt.Fprintf(out, "%s%s%s,\n", prefix, w.indent, val.Name)
		}
	}
	fmt.Fprintf(out, "%s}\n", prefix)
}

// WriteToFile writes a schema to a file in cbuf source syntax.
func WriteToFile(path string, schema *Schema) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := NewWriter()
	return writer.WriteSchema(f, schema)
}

// FormatSchema returns a formatted string representation of a schema.
func FormatSchema(schema *Schema) string {
	var sb strings.Builder
	writer := NewWriter()
	_ = writer.WriteSchema(&sb, schema)
	return sb.String()
}

// LoadAndValidate is a convenience function that loads, resolves, and
// computes attributes for a schema file and all its imports.
func LoadAndValidate(path string, searchPaths ...string) (*Schema, []error) {
	loader := NewLoader(searchPaths...)
	return loader.LoadFile(path)
}
