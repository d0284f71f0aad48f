package wire

import (
	"bytes"
	"math"
	"testing"
)

func TestAppendFixed16(t *testing.T) {
	tests := []struct {
		name     string
		value    uint16
		expected []byte
	}{
		{"zero", 0, []byte{0x00, 0x00}},
		{"one", 1, []byte{0x01, 0x00}},
		{"0x1234", 0x1234, []byte{0x34, 0x12}},
		{"max_uint16", math.MaxUint16, []byte{0xff, 0xff}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := AppendFixed16(nil, tc.value)
			if !bytes.Equal(result, tc.expected) {
				t.Errorf("AppendFixed16(%d) = %v, want %v", tc.value, result, tc.expected)
			}
		})
	}
}

func TestAppendFixed32(t *testing.T) {
	tests := []struct {
		name     string
		value    uint32
		expected []byte
	}{
		{"zero", 0, []byte{0x00, 0x00, 0x00, 0x00}},
		{"one", 1, []byte{0x01, 0x00, 0x00, 0x00}},
		{"256", 256, []byte{0x00, 0x01, 0x00, 0x00}},
		{"0x12345678", 0x12345678, []byte{0x78, 0x56, 0x34, 0x12}},
		{"max_uint32", math.MaxUint32, []byte{0xff, 0xff, 0xff, 0xff}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := AppendFixed32(nil, tc.value)
			if !bytes.Equal(result, tc.expected) {
				t.Errorf("AppendFixed32(%d) = %v, want %v", tc.value, result, tc.expected)
			}
		})
	}
}

func TestAppendFixed64(t *testing.T) {
	tests := []struct {
		name     string
		value    uint64
		expected []byte
	}{
		{"zero", 0, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{"one", 1, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{"0x123456789ABCDEF0", 0x123456789ABCDEF0, []byte{0xF0, 0xDE, 0xBC, 0x9A, 0x78, 0x56, 0x34, 0x12}},
		{"max_uint64", math.MaxUint64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := AppendFixed64(nil, tc.value)
			if !bytes.Equal(result, tc.expected) {
				t.Errorf("AppendFixed64(%d) = %v, want %v", tc.value, result, tc.expected)
			}
		})
	}
}

func TestDecodeFixed16(t *testing.T) {
	got, err := DecodeFixed16([]byte{0x34, 0x12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0x1234 {
		t.Errorf("DecodeFixed16 = 0x%x, want 0x1234", got)
	}
}

func TestDecodeFixed32(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint32
	}{
		{"zero", []byte{0x00, 0x00, 0x00, 0x00}, 0},
		{"0x12345678", []byte{0x78, 0x56, 0x34, 0x12}, 0x12345678},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeFixed32(tc.data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("DecodeFixed32 = %d, want %d", got, tc.expected)
			}
		})
	}
}

func TestDecodeFixed64(t *testing.T) {
	got, err := DecodeFixed64([]byte{0xF0, 0xDE, 0xBC, 0x9A, 0x78, 0x56, 0x34, 0x12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0x123456789ABCDEF0 {
		t.Errorf("DecodeFixed64 = 0x%x, want 0x123456789ABCDEF0", got)
	}
}

func TestDecodeFixed16Error(t *testing.T) {
	if _, err := DecodeFixed16([]byte{0x01}); err != ErrTruncated {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestDecodeFixed32Error(t *testing.T) {
	if _, err := DecodeFixed32([]byte{0x01, 0x02}); err != ErrTruncated {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestDecodeFixed64Error(t *testing.T) {
	if _, err := DecodeFixed64([]byte{0x01, 0x02}); err != ErrTruncated {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestPutFixed16(t *testing.T) {
	buf := make([]byte, 2)
	PutFixed16(buf, 0x1234)
	if !bytes.Equal(buf, []byte{0x34, 0x12}) {
		t.Errorf("PutFixed16 = %v, want [0x34 0x12]", buf)
	}
}

func TestPutFixed32(t *testing.T) {
	buf := make([]byte, 4)
	PutFixed32(buf, 0x12345678)
	if !bytes.Equal(buf, []byte{0x78, 0x56, 0x34, 0x12}) {
		t.Errorf("PutFixed32 = %v, want [0x78 0x56 0x34 0x12]", buf)
	}
}

func TestPutFixed64(t *testing.T) {
	buf := make([]byte, 8)
	PutFixed64(buf, 0x123456789ABCDEF0)
	expected := []byte{0xF0, 0xDE, 0xBC, 0x9A, 0x78, 0x56, 0x34, 0x12}
	if !bytes.Equal(buf, expected) {
		t.Errorf("PutFixed64 = %v, want %v", buf, expected)
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	values := []float32{0, 1.5, -1.5, math.MaxFloat32, -math.MaxFloat32, float32(math.Inf(1)), float32(math.Inf(-1))}
	for _, v := range values {
		buf := AppendFloat32(nil, v)
		got, err := DecodeFloat32(buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != v {
			t.Errorf("round trip %v got %v", v, got)
		}
	}
}

func TestFloat32PreservesNegativeZero(t *testing.T) {
	buf := AppendFloat32(nil, float32(math.Copysign(0, -1)))
	got, _ := DecodeFloat32(buf)
	if math.Signbit(float64(got)) != true {
		t.Error("expected negative zero to round-trip as negative zero, not be canonicalized")
	}
}

func TestFloat32PreservesNaNBits(t *testing.T) {
	bits := uint32(0x7FC00001) // a NaN with a non-zero payload
	v := math.Float32frombits(bits)
	buf := AppendFloat32(nil, v)
	got, _ := DecodeFloat32(buf)
	if math.Float32bits(got) != bits {
		t.Errorf("expected NaN bit pattern to be preserved exactly, got 0x%x want 0x%x", math.Float32bits(got), bits)
	}
}

func TestFloat64RoundTrip(t *testing.T) {
	values := []float64{0, 1.5, -1.5, math.MaxFloat64, -math.MaxFloat64, math.Inf(1), math.Inf(-1)}
	for _, v := range values {
		buf := AppendFloat64(nil, v)
		got, err := DecodeFloat64(buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != v {
			t.Errorf("round trip %v got %v", v, got)
		}
	}
}

func TestFloat64PreservesNegativeZero(t *testing.T) {
	buf := AppendFloat64(nil, math.Copysign(0, -1))
	got, _ := DecodeFloat64(buf)
	if !math.Signbit(got) {
		t.Error("expected negative zero to round-trip as negative zero, not be canonicalized")
	}
}

func TestFloat64PreservesNaNBits(t *testing.T) {
	bits := uint64(0x7FF8000000000001)
	v := math.Float64frombits(bits)
	buf := AppendFloat64(nil, v)
	got, _ := DecodeFloat64(buf)
	if math.Float64bits(got) != bits {
		t.Errorf("expected NaN bit pattern to be preserved exactly, got 0x%x want 0x%x", math.Float64bits(got), bits)
	}
}

func TestEncodingDeterminism(t *testing.T) {
	a := AppendFixed64(nil, 0x1122334455667788)
	b := AppendFixed64(nil, 0x1122334455667788)
	if !bytes.Equal(a, b) {
		t.Error("expected identical input to produce identical output")
	}
}
