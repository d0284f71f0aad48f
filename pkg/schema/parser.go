package schema

import (
	"fmt"
	"strconv"
)

// Parser parses cbuf schema source into an AST, following the grammar in
// §4.1:
//
//	file       := ( import | namespace | struct | enum )*
//	import     := '#import' STRING
//	namespace  := 'namespace' IDENT '{' ( struct | enum )* '}'
//	struct     := 'struct' IDENT ('@' IDENT)* '{' element* '}'
//	enum       := 'enum' IDENT '{' IDENT ('=' intexpr)? (',' IDENT ('=' intexpr)?)* ','? '}'
//	element    := typeref IDENT array? ('=' initializer)? ';'
//	typeref    := primtype | IDENT ('::' IDENT)?
//	array      := '[' (intexpr ('*' intexpr)*)? ']'
//	initializer:= intexpr | floatlit | strlit | '{' initlist '}'
type Parser struct {
	lexer    *Lexer
	current  Token
	previous Token
	errors   []ParseError
	comments []*Comment
}

// ParseError represents a parsing error.
type ParseError struct {
	Position Position
	Message  string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: error: %s", e.Position.Filename, e.Position.Line, e.Position.Column, e.Message)
}

// NewParser creates a new parser for the given input.
func NewParser(filename, input string) *Parser {
	p := &Parser{
		lexer: NewLexer(filename, input),
	}
	p.advance()
	return p
}

// Parse parses an entire schema file.
func (p *Parser) Parse() (*Schema, []ParseError) {
	schema := &Schema{
		Position: p.current.Position,
		Global: &Namespace{
			Name: GlobalNamespaceName,
		},
	}

	p.collectComments()

	for p.check(TokenImport) {
		imp, err := p.parseImport()
		if err != nil {
			p.errors = append(p.errors, *err)
			p.synchronize()
		} else {
			schema.Imports = append(schema.Imports, imp)
		}
	}

	for !p.check(TokenEOF) {
		p.collectComments()

		switch {
		case p.check(TokenNamespace):
			ns, err := p.parseNamespace()
			if err != nil {
				p.errors = append(p.errors, *err)
				p.synchronize()
			} else {
				schema.Namespaces = append(schema.Namespaces, ns)
			}
		case p.check(TokenStruct):
			st, err := p.parseStruct()
			if err != nil {
				p.errors = append(p.errors, *err)
				p.synchronize()
			} else {
				st.NSName = GlobalNamespaceName
				schema.Global.Structs = append(schema.Global.Structs, st)
			}
		case p.check(TokenEnum):
			en, err := p.parseEnum()
			if err != nil {
				p.errors = append(p.errors, *err)
				p.synchronize()
			} else {
				en.NSName = GlobalNamespaceName
				schema.Global.Enums = append(schema.Global.Enums, en)
			}
		case p.check(TokenComment), p.check(TokenDocComment):
			p.advance()
		case p.check(TokenEOF):
		default:
			p.errors = append(p.errors, ParseError{
				Position: p.current.Position,
				Message:  fmt.Sprintf("unexpected token: %s", p.current.Type),
			})
			p.advance()
		}
	}

	schema.Comments = p.comments
	return schema, p.errors
}

// parseImport parses: '#import' STRING
func (p *Parser) parseImport() (*Import, *ParseError) {
	startPos := p.current.Position
	p.advance() // consume '#import'

	if !p.check(TokenString) {
		return nil, p.error("expected import path string")
	}
	path := p.current.Value
	endPos := p.current.Position
	p.advance()

	return &Import{
		Position: startPos,
		EndPos:   endPos,
		Path:     path,
	}, nil
}

// parseNamespace parses: 'namespace' IDENT '{' (struct | enum)* '}'
// Namespaces never nest.
func (p *Parser) parseNamespace() (*Namespace, *ParseError) {
	startPos := p.current.Position
	p.advance() // consume 'namespace'

	if !p.check(TokenIdent) {
		return nil, p.error("expected namespace name")
	}
	name := p.current.Value
	p.advance()

	if !p.consume(TokenLBrace, "expected '{' after namespace name") {
		return nil, p.error("expected '{' after namespace name")
	}

	ns := &Namespace{Position: startPos, Name: name}

	for !p.check(TokenRBrace) && !p.check(TokenEOF) {
		p.collectComments()
		switch {
		case p.check(TokenStruct):
			st, err := p.parseStruct()
			if err != nil {
				return nil, err
			}
			st.NSName = name
			ns.Structs = append(ns.Structs, st)
		case p.check(TokenEnum):
			en, err := p.parseEnum()
			if err != nil {
				return nil, err
			}
			en.NSName = name
			ns.Enums = append(ns.Enums, en)
		case p.check(TokenNamespace):
			return nil, p.error("namespaces may not be nested")
		default:
			return nil, p.error(fmt.Sprintf("expected struct or enum, got %s", p.current.Type))
		}
	}

	ns.EndPos = p.current.Position
	if !p.consume(TokenRBrace, "expected '}'") {
		return nil, p.error("expected '}'")
	}

	return ns, nil
}

// parseStruct parses: 'struct' IDENT ('@' IDENT)* '{' element* '}'
func (p *Parser) parseStruct() (*Struct, *ParseError) {
	docComments := p.getDocComments()
	startPos := p.current.Position
	p.advance() // consume 'struct'

	if !p.check(TokenIdent) {
		return nil, p.error("expected struct name")
	}
	name := p.current.Value
	p.advance()

	naked := false
	for p.check(TokenAt) {
		p.advance()
		if !p.check(TokenIdent) {
			return nil, p.error("expected attribute name after '@'")
		}
		switch p.current.Value {
		case "naked":
			naked = true
		default:
			return nil, p.error(fmt.Sprintf("unknown struct attribute @%s", p.current.Value))
		}
		p.advance()
	}

	if !p.consume(TokenLBrace, "expected '{' after struct name") {
		return nil, p.error("expected '{' after struct name")
	}

	var elements []*Element
	for !p.check(TokenRBrace) && !p.check(TokenEOF) {
		p.collectComments()
		if p.check(TokenRBrace) {
			break
		}
		elem, err := p.parseElement()
		if err != nil {
			return nil, err
		}
		elem.EnclosingName = name
		elements = append(elements, elem)
	}

	endPos := p.current.Position
	if !p.consume(TokenRBrace, "expected '}'") {
		return nil, p.error("expected '}'")
	}

	return &Struct{
		Position: startPos,
		EndPos:   endPos,
		Name:     name,
		Elements: elements,
		Naked:    naked,
		Comments: docComments,
	}, nil
}

// parseElement parses: typeref IDENT array? ('=' initializer)? ';'
func (p *Parser) parseElement() (*Element, *ParseError) {
	docComments := p.getDocComments()
	_ = docComments
	startPos := p.current.Position

	elemType, customName, customNS, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}

	if !p.check(TokenIdent) {
		return nil, p.error("expected element name")
	}
	name := p.current.Value
	p.advance()

	var arr *ArraySpec
	if p.check(TokenLBracket) {
		a, err := p.parseArraySpec()
		if err != nil {
			return nil, err
		}
		arr = a
	}

	// @compact attribute, legal only after an array with a known capacity.
	for p.check(TokenAt) {
		p.advance()
		if !p.check(TokenIdent) {
			return nil, p.error("expected attribute name after '@'")
		}
		switch p.current.Value {
		case "compact":
			if arr == nil || arr.Flavor != ArrayStatic {
				return nil, p.error("@compact requires a sized array, e.g. T x[N] @compact")
			}
			arr.Flavor = ArrayCompact
		default:
			return nil, p.error(fmt.Sprintf("unknown element attribute @%s", p.current.Value))
		}
		p.advance()
	}

	var def Initializer
	if p.check(TokenEquals) {
		p.advance()
		if elemType == TypeCustom && customNameRefersToStruct(customName) {
			// Resolved later; parser can't yet tell struct from enum, so it
			// only rejects the syntactically-obvious case: an aggregate
			// initializer list attached to a custom-typed field without an
			// array suffix is almost certainly wrong. Struct-typed elements
			// may never carry a default; enforced fully in the resolver.
		}
		d, err := p.parseInitializer()
		if err != nil {
			return nil, err
		}
		def = d
	}

	endPos := p.current.Position
	if !p.consume(TokenSemicolon, "expected ';' after element") {
		return nil, p.error("expected ';' after element")
	}

	return &Element{
		Position:   startPos,
		EndPos:     endPos,
		Name:       name,
		Type:       elemType,
		CustomName: customName,
		CustomNS:   customNS,
		Array:      arr,
		Default:    def,
	}, nil
}

// customNameRefersToStruct is a placeholder hook; struct-vs-enum is only
// known after symbol resolution, so this always returns false and the real
// check (no initializer on struct-typed elements) happens in the resolver.
func customNameRefersToStruct(string) bool { return false }

// parseTypeRef parses: primtype | IDENT ('::' IDENT)?
func (p *Parser) parseTypeRef() (ElementType, string, string, *ParseError) {
	if t, ok := primitiveTypeTokens[p.current.Type]; ok {
		p.advance()
		return t, "", "", nil
	}

	if p.check(TokenVoid) {
		return 0, "", "", p.error("'void' is not a valid element type")
	}

	if !p.check(TokenIdent) {
		return 0, "", "", p.error("expected a type name")
	}

	first := p.current.Value
	p.advance()

	if p.check(TokenColonColon) {
		p.advance()
		if !p.check(TokenIdent) {
			return 0, "", "", p.error("expected identifier after '::'")
		}
		second := p.current.Value
		p.advance()
		return TypeCustom, second, first, nil
	}

	return TypeCustom, first, "", nil
}

// parseArraySpec parses: '[' (intexpr ('*' intexpr)*)? ']'
// An empty bracket pair is a dynamic array; one or more dimensions multiply
// together into a single static capacity (cbuf has no true multi-dimensional
// arrays on the wire, only a flattened size).
func (p *Parser) parseArraySpec() (*ArraySpec, *ParseError) {
	p.advance() // consume '['

	if p.check(TokenRBracket) {
		p.advance()
		return &ArraySpec{Flavor: ArrayDynamic}, nil
	}

	size, err := p.parseIntExpr()
	if err != nil {
		return nil, err
	}

	for p.check(TokenStar) {
		p.advance()
		next, err := p.parseIntExpr()
		if err != nil {
			return nil, err
		}
		size *= next
	}

	if !p.consume(TokenRBracket, "expected ']'") {
		return nil, p.error("expected ']'")
	}

	return &ArraySpec{Flavor: ArrayStatic, Size: uint64(size)}, nil
}

// parseIntExpr parses a single integer literal. cbuf's initializer grammar
// allows "constant-expression over integers"; the front-end only needs to
// fold literal integers since schemas don't define named constants.
func (p *Parser) parseIntExpr() (int64, *ParseError) {
	if !p.check(TokenInt) {
		return 0, p.error("expected integer")
	}
	v, err := strconv.ParseInt(p.current.Value, 0, 64)
	if err != nil {
		return 0, p.error(fmt.Sprintf("invalid integer literal %q", p.current.Value))
	}
	p.advance()
	return v, nil
}

// parseInitializer parses: intexpr | floatlit | strlit | '{' initlist '}'
func (p *Parser) parseInitializer() (Initializer, *ParseError) {
	startPos := p.current.Position

	switch p.current.Type {
	case TokenInt:
		v, err := p.parseIntExpr()
		if err != nil {
			return nil, err
		}
		return &IntInitializer{Position: startPos, EndPos: p.previous.Position, Value: v}, nil

	case TokenFloat:
		v, perr := strconv.ParseFloat(p.current.Value, 64)
		if perr != nil {
			return nil, p.error(fmt.Sprintf("invalid float literal %q", p.current.Value))
		}
		p.advance()
		return &FloatInitializer{Position: startPos, EndPos: p.previous.Position, Value: v}, nil

	case TokenString:
		v := p.current.Value
		p.advance()
		return &StringInitializer{Position: startPos, EndPos: p.previous.Position, Value: v}, nil

	case TokenLBrace:
		return p.parseArrayInitializer()

	default:
		return nil, p.error("expected a default value")
	}
}

// parseArrayInitializer parses: '{' initlist '}' with no trailing comma.
func (p *Parser) parseArrayInitializer() (*ArrayInitializer, *ParseError) {
	startPos := p.current.Position
	p.advance() // consume '{'

	var values []Initializer
	for !p.check(TokenRBrace) && !p.check(TokenEOF) {
		v, err := p.parseInitializer()
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		if p.check(TokenComma) {
			p.advance()
			if p.check(TokenRBrace) {
				return nil, p.error("trailing comma not allowed in initializer list")
			}
			continue
		}
		break
	}

	endPos := p.current.Position
	if !p.consume(TokenRBrace, "expected '}'") {
		return nil, p.error("expected '}'")
	}

	return &ArrayInitializer{Position: startPos, EndPos: endPos, Values: values}, nil
}

// parseEnum parses: 'enum' IDENT '{' IDENT ('=' intexpr)? (',' IDENT ('=' intexpr)?)* ','? '}'
func (p *Parser) parseEnum() (*Enum, *ParseError) {
	docComments := p.getDocComments()
	startPos := p.current.Position
	p.advance() // consume 'enum'

	if !p.check(TokenIdent) {
		return nil, p.error("expected enum name")
	}
	name := p.current.Value
	p.advance()

	if !p.consume(TokenLBrace, "expected '{' after enum name") {
		return nil, p.error("expected '{' after enum name")
	}

	var values []*EnumValue
	next := int32(0)
	for !p.check(TokenRBrace) && !p.check(TokenEOF) {
		if !p.check(TokenIdent) {
			return nil, p.error("expected enum value name")
		}
		vStart := p.current.Position
		vName := p.current.Value
		p.advance()

		val := next
		explicit := false
		if p.check(TokenEquals) {
			p.advance()
			n, err := p.parseIntExpr()
			if err != nil {
				return nil, err
			}
			val = int32(n)
			explicit = true
		}
		next = val + 1

		values = append(values, &EnumValue{
			Position: vStart,
			EndPos:   p.previous.Position,
			Name:     vName,
			Value:    val,
			Explicit: explicit,
		})

		if p.check(TokenComma) {
			p.advance()
			continue
		}
		break
	}

	endPos := p.current.Position
	if !p.consume(TokenRBrace, "expected '}'") {
		return nil, p.error("expected '}'")
	}

	return &Enum{
		Position: startPos,
		EndPos:   endPos,
		Name:     name,
		Values:   values,
		Comments: docComments,
	}, nil
}

// Helper methods

func (p *Parser) advance() {
	p.previous = p.current
	p.current = p.lexer.Next()

	for p.current.Type == TokenComment {
		p.current = p.lexer.Next()
	}
}

func (p *Parser) check(typ TokenType) bool {
	return p.current.Type == typ
}

func (p *Parser) consume(typ TokenType, msg string) bool {
	if p.check(typ) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) error(msg string) *ParseError {
	if p.current.Type == TokenError {
		return &ParseError{
			Position: p.current.Position,
			Message:  p.current.Value,
		}
	}
	return &ParseError{
		Position: p.current.Position,
		Message:  msg,
	}
}

// synchronize skips tokens until we find a likely sync point.
func (p *Parser) synchronize() {
	for !p.check(TokenEOF) {
		if p.previous.Type == TokenSemicolon || p.previous.Type == TokenRBrace {
			return
		}
		switch p.current.Type {
		case TokenImport, TokenNamespace, TokenStruct, TokenEnum:
			return
		}
		p.advance()
	}
}

// collectComments collects doc comments preceding the current position.
func (p *Parser) collectComments() {
	for p.current.Type == TokenDocComment || p.current.Type == TokenComment {
		if p.current.Type == TokenDocComment {
			p.comments = append(p.comments, &Comment{
				Position: p.current.Position,
				EndPos:   p.current.Position,
				Text:     p.current.Value,
				IsDoc:    true,
			})
		}
		p.current = p.lexer.Next()
	}
}

// getDocComments returns recently collected doc comments and clears them.
func (p *Parser) getDocComments() []*Comment {
	result := make([]*Comment, len(p.comments))
	copy(result, p.comments)
	p.comments = nil
	return result
}

// ParseFile is a convenience function that parses a schema file.
func ParseFile(filename, input string) (*Schema, []ParseError) {
	parser := NewParser(filename, input)
	return parser.Parse()
}
