package cbuf

import (
	"encoding/json"
	"testing"

	"github.com/blockberries/cbuf/internal/wire"
)

func TestReflectSimpleStruct(t *testing.T) {
	schemaText := "namespace m { struct p { u32 a; u32 b; } }"
	body := make([]byte, 8)
	wire.PutFixed32(body[0:4], 11)
	wire.PutFixed32(body[4:8], 22)

	v, err := Reflect(schemaText, "m::p", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindStruct {
		t.Fatalf("Kind = %v, want KindStruct", v.Kind)
	}

	a := v.Get("a")
	if a == nil || a.Kind != KindScalar {
		t.Fatalf("expected scalar field a, got %+v", a)
	}
	if got, ok := a.Scalar.(uint32); !ok || got != 11 {
		t.Errorf("a.Scalar = %v, want uint32(11)", a.Scalar)
	}

	b := v.Get("b")
	if b == nil || b.Scalar != uint32(22) {
		t.Errorf("b.Scalar = %v, want uint32(22)", b.Scalar)
	}
}

func TestReflectNestedNakedStruct(t *testing.T) {
	schemaText := `
		struct inner @naked { u16 count; }
		struct outer { inner payload; u8 flag; }
	`
	body := make([]byte, 3)
	wire.PutFixed16(body[0:2], 42)
	body[2] = 1

	v, err := Reflect(schemaText, "outer", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload := v.Get("payload")
	if payload == nil || payload.Kind != KindStruct {
		t.Fatalf("expected nested struct field, got %+v", payload)
	}
	count := payload.Get("count")
	if count == nil || count.Scalar != uint16(42) {
		t.Errorf("count.Scalar = %v, want uint16(42)", count.Scalar)
	}
	flag := v.Get("flag")
	if flag == nil || flag.Scalar != uint8(1) {
		t.Errorf("flag.Scalar = %v, want uint8(1)", flag.Scalar)
	}
}

func TestReflectEnum(t *testing.T) {
	schemaText := `
		enum Color { Red = 0, Green = 1, Blue = 2 }
		struct tagged { Color c; }
	`
	body := wire.AppendFixed32(nil, 1)

	v, err := Reflect(schemaText, "tagged", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := v.Get("c")
	if c == nil || c.Kind != KindEnum {
		t.Fatalf("expected enum field c, got %+v", c)
	}
	if c.EnumName != "Green" {
		t.Errorf("EnumName = %q, want %q", c.EnumName, "Green")
	}
}

func TestReflectStaticArray(t *testing.T) {
	schemaText := "struct arr { u8 values[3]; }"
	body := []byte{1, 2, 3}

	v, err := Reflect(schemaText, "arr", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	values := v.Get("values")
	if values == nil || values.Kind != KindArray {
		t.Fatalf("expected array field values, got %+v", values)
	}
	if len(values.Elements) != 3 {
		t.Fatalf("got %d elements, want 3", len(values.Elements))
	}
	for i, want := range []uint8{1, 2, 3} {
		if values.Elements[i].Scalar != want {
			t.Errorf("element %d = %v, want %d", i, values.Elements[i].Scalar, want)
		}
	}
}

func TestValueMarshalJSON(t *testing.T) {
	schemaText := "namespace m { struct p { u32 a; u32 b; } }"
	body := make([]byte, 8)
	wire.PutFixed32(body[0:4], 1)
	wire.PutFixed32(body[4:8], 2)

	v, err := Reflect(schemaText, "m::p", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded["a"] != float64(1) || decoded["b"] != float64(2) {
		t.Errorf("decoded = %v, want a=1 b=2", decoded)
	}
}
