package schema

import "fmt"

// ResolveError reports a symbol-resolution failure: an unresolved custom
// type, a cyclic struct containment chain, or a duplicate struct/enum name
// within a namespace.
type ResolveError struct {
	Position Position
	Kind     ResolveErrorKind
	Message  string
}

// ResolveErrorKind classifies a ResolveError.
type ResolveErrorKind int

const (
	UnresolvedType ResolveErrorKind = iota
	CyclicType
	DuplicateName
	InvalidDefault
)

func (e ResolveError) Error() string {
	return fmt.Sprintf("%s:%d:%d: error: %s", e.Position.Filename, e.Position.Line, e.Position.Column, e.Message)
}

// symbolTable indexes every struct and enum visible to a schema, keyed by
// "namespace::name", or by bare "name" for global-namespace declarations.
type symbolTable struct {
	structs map[string]*Struct
	enums   map[string]*Enum
}

func newSymbolTable() *symbolTable {
	return &symbolTable{
		structs: make(map[string]*Struct),
		enums:   make(map[string]*Enum),
	}
}

// Resolve binds every custom-typed Element in schema's Global and
// Namespaces to the Struct or Enum it names (Imports are not followed;
// Loader passes a schema combining every imported file), detects cyclic struct containment, and
// rejects duplicate struct/enum names within a namespace. It mutates the
// schema's Elements in place (ResolvedStruct / ResolvedEnum) and returns
// every error found; resolution continues past individual errors so a
// single pass reports as much as possible.
func Resolve(schema *Schema) []ResolveError {
	var errs []ResolveError

	table := newSymbolTable()
	allNamespaces := schema.Namespaces
	if len(schema.Global.Structs) > 0 || len(schema.Global.Enums) > 0 {
		allNamespaces = append(allNamespaces, schema.Global)
	}

	for _, ns := range allNamespaces {
		seen := make(map[string]Position)
		for _, st := range ns.Structs {
			if pos, dup := seen[st.Name]; dup {
				errs = append(errs, ResolveError{
					Position: st.Position,
					Kind:     DuplicateName,
					Message:  fmt.Sprintf("struct %q already declared at %d:%d", st.Name, pos.Line, pos.Column),
				})
				continue
			}
			seen[st.Name] = st.Position
			table.structs[qualify(ns.Name, st.Name)] = st
		}
		for _, en := range ns.Enums {
			if pos, dup := seen[en.Name]; dup {
				errs = append(errs, ResolveError{
					Position: en.Position,
					Kind:     DuplicateName,
					Message:  fmt.Sprintf("name %q already declared at %d:%d", en.Name, pos.Line, pos.Column),
				})
				continue
			}
			seen[en.Name] = en.Position
			table.enums[qualify(ns.Name, en.Name)] = en
		}
	}

	for _, ns := range allNamespaces {
		for _, st := range ns.Structs {
			for _, elem := range st.Elements {
				if elem.Type != TypeCustom {
					continue
				}
				if err := resolveElement(table, ns.Name, elem); err != nil {
					errs = append(errs, *err)
					continue
				}
				if elem.ResolvedStruct != nil && elem.Default != nil {
					errs = append(errs, ResolveError{
						Position: elem.Default.Pos(),
						Kind:     InvalidDefault,
						Message:  fmt.Sprintf("element %q of struct-type %q may not have a default value", elem.Name, elem.CustomName),
					})
				}
				if elem.ResolvedStruct != nil {
					if _, isArrayLit := elem.Default.(*ArrayInitializer); isArrayLit {
						errs = append(errs, ResolveError{
							Position: elem.Default.Pos(),
							Kind:     InvalidDefault,
							Message:  "array literal initializers are only legal for built-in element types",
						})
					}
				}
			}
		}
	}

	errs = append(errs, detectCycles(allNamespaces)...)

	return errs
}

func qualify(ns, name string) string {
	if ns == "" || ns == GlobalNamespaceName {
		return name
	}
	return ns + "::" + name
}

// resolveElement binds elem.CustomName (optionally CustomNS-qualified) to a
// struct or enum, searching the element's own namespace first and falling
// back to the global namespace for unqualified names.
func resolveElement(table *symbolTable, ownerNS string, elem *Element) *ResolveError {
	var key string
	if elem.CustomNS != "" {
		key = qualify(elem.CustomNS, elem.CustomName)
	} else {
		key = qualify(ownerNS, elem.CustomName)
	}

	if st, ok := table.structs[key]; ok {
		elem.ResolvedStruct = st
		return nil
	}
	if en, ok := table.enums[key]; ok {
		elem.ResolvedEnum = en
		return nil
	}

	if elem.CustomNS == "" {
		if st, ok := table.structs[elem.CustomName]; ok {
			elem.ResolvedStruct = st
			return nil
		}
		if en, ok := table.enums[elem.CustomName]; ok {
			elem.ResolvedEnum = en
			return nil
		}
	}

	name := elem.CustomName
	if elem.CustomNS != "" {
		name = elem.CustomNS + "::" + elem.CustomName
	}
	return &ResolveError{
		Position: elem.Position,
		Kind:     UnresolvedType,
		Message:  fmt.Sprintf("unresolved type %q referenced by element %q", name, elem.Name),
	}
}

// detectCycles walks struct containment (a struct "contains" another when
// one of its elements resolves to it, directly or via an array) and reports
// any struct reachable from itself. A struct containing itself only through
// a dynamic array pointer-like reference is still a cycle in cbuf: there is
// no indirection on the wire, so any self-containment is fatal.
func detectCycles(namespaces []*Namespace) []ResolveError {
	var errs []ResolveError
	visited := make(map[*Struct]bool)

	var visit func(st *Struct, stack []*Struct) *ResolveError
	visit = func(st *Struct, stack []*Struct) *ResolveError {
		if st.visiting {
			return &ResolveError{
				Position: st.Position,
				Kind:     CyclicType,
				Message:  fmt.Sprintf("struct %q is recursively contained within itself", st.QualifiedName()),
			}
		}
		if visited[st] {
			return nil
		}
		st.visiting = true
		defer func() { st.visiting = false }()

		for _, elem := range st.Elements {
			if elem.ResolvedStruct == nil {
				continue
			}
			if err := visit(elem.ResolvedStruct, append(stack, st)); err != nil {
				return err
			}
		}
		visited[st] = true
		return nil
	}

	for _, ns := range namespaces {
		for _, st := range ns.Structs {
			if err := visit(st, nil); err != nil {
				errs = append(errs, *err)
			}
		}
	}

	return errs
}
