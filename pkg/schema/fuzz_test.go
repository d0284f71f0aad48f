//go:build go1.18

package schema

import (
	"testing"
)

// FuzzSchemaParser tests that the schema parser never panics on arbitrary input.
func FuzzSchemaParser(f *testing.F) {
	f.Add(`struct Foo { u32 bar = 1; }`)
	f.Add(`struct Empty {}`)
	f.Add(`enum Status { UNKNOWN = 0, ACTIVE = 1 }`)
	f.Add(`namespace example { struct A {} }`)
	f.Add(`#import "common.cbuf"`)
	f.Add(`
namespace example {
  struct User {
    u64 id;
    string name;
    u32 tags[];
    u32 limited[8] @compact;
  }
}
`)
	f.Add(`struct A @naked { u32 x; }`)

	f.Add(``)
	f.Add(`{`)
	f.Add(`}`)
	f.Add(`struct`)
	f.Add(`struct {`)
	f.Add(`struct Foo`)
	f.Add(`struct Foo {`)
	f.Add(`struct Foo { bar }`)
	f.Add(`struct Foo { bar: }`)
	f.Add(`struct Foo { u32 }`)
	f.Add(`struct Foo { u32 bar = }`)
	f.Add(`struct Foo { u32 bar = abc; }`)
	f.Add(`struct Foo { u32 bar[] @compact; }`)
	f.Add(`#import`)
	f.Add(`namespace { struct A {} }`)
	f.Add(`namespace a { namespace b { struct A {} } }`)

	f.Fuzz(func(t *testing.T, input string) {
		p := NewParser("fuzz.cbuf", input)
		_, _ = p.Parse()
	})
}

// FuzzLexer tests that the lexer never panics on arbitrary input.
func FuzzLexer(f *testing.F) {
	f.Add(`struct Foo { u32 bar = 1; }`)
	f.Add(`"hello world"`)
	f.Add(`123`)
	f.Add(`0x1234`)
	f.Add(`0755`)
	f.Add(`3.14e-10`)
	f.Add(`#import "x"`)
	f.Add("// comment\n/// doc\n")
	f.Add(`::`)
	f.Add(`"unterminated`)
	f.Add(`"bad\escape"`)
	f.Add(`$%^&`)

	f.Fuzz(func(t *testing.T, input string) {
		lexer := NewLexer("fuzz.cbuf", input)
		for i := 0; i < 10000; i++ {
			tok := lexer.Next()
			if tok.Type == TokenEOF {
				break
			}
		}
	})
}
