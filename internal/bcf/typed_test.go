package bcf

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/htsio/internal/errs"
)

func TestDecodeValue_SingleChar(t *testing.T) {
	t.Parallel()

	// 0x17: length 1, type char.
	v, n, err := DecodeValue([]byte{0x17, 'G', 0xee})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, TypeChar, v.Type)
	assert.Equal(t, 1, v.Len)
	assert.Equal(t, "G", v.String())
}

func TestDecodeValue_OverflowLength(t *testing.T) {
	t.Parallel()

	for _, size := range []int{15, 16, 100, 127} {
		s := bytes.Repeat([]byte("ACGT"), 40)[:size]
		// 0xF7: overflow length, type char; then int8 scalar 0x11 holding the length.
		in := append([]byte{0xf7, 0x11, byte(size)}, s...)
		v, n, err := DecodeValue(in)
		require.NoError(t, err)
		assert.Equal(t, len(in), n)
		assert.Equal(t, size, v.Len)
		assert.Equal(t, string(s), v.String())

		// The encoder picks the same form.
		assert.Equal(t, in, AppendString(nil, string(s)))
	}
}

func TestDecodeValue_OverflowWithInt16Length(t *testing.T) {
	t.Parallel()

	in := []byte{0xf1, 0x12, 0x2c, 0x01} // 300 int8 values follow
	in = append(in, make([]byte, 300)...)
	v, n, err := DecodeValue(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.Equal(t, 300, v.Len)
	assert.Equal(t, TypeInt8, v.Type)
}

func TestDecodeValue_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      []byte
		wantErr error
	}{
		{"unknown type 4", []byte{0x14, 0}, errs.ErrUnsupportedEncoding},
		{"unknown type 6", []byte{0x16, 0}, errs.ErrUnsupportedEncoding},
		{"float overflow length", []byte{0xf7, 0x15, 0, 0, 0, 0}, errs.ErrUnsupportedEncoding},
		{"vector overflow length", []byte{0xf7, 0x21, 1, 2}, errs.ErrUnsupportedEncoding},
		{"nested overflow length", []byte{0xf1, 0xf1, 0xf1, 0x11, 0x01, 0x00}, errs.ErrUnsupportedEncoding},
		{"missing overflow length", []byte{0xf1, 0x11, 0x80}, errs.ErrUnsupportedEncoding},
		{"overflow length cut short", []byte{0xf1, 0x12, 0x20}, errs.ErrMalformedRecord},
		{"short data", []byte{0x33, 1, 0, 0, 0}, errs.ErrMalformedRecord},
		{"empty", nil, errs.ErrMalformedRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := DecodeValue(tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAppendInts_NarrowestType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		vals []int32
		want Type
	}{
		{[]int32{0, 1, 127}, TypeInt8},
		{[]int32{-120}, TypeInt8},
		{[]int32{-121}, TypeInt16},
		{[]int32{128}, TypeInt16},
		{[]int32{1, 32767}, TypeInt16},
		{[]int32{-32761}, TypeInt32},
		{[]int32{1 << 20}, TypeInt32},
	}
	for _, tt := range tests {
		b := AppendInts(nil, tt.vals)
		v, n, err := DecodeValue(b)
		require.NoError(t, err)
		assert.Equal(t, len(b), n)
		assert.Equal(t, tt.want, v.Type, "%v", tt.vals)
		assert.Equal(t, tt.vals, v.Ints())
	}
}

func TestValue_MissingAndEndOfVector(t *testing.T) {
	t.Parallel()

	ints := Value{Type: TypeInt16, Len: 4, Data: []byte{0x05, 0x00, 0x00, 0x80, 0x07, 0x00, 0x01, 0x80}}
	_, ok := ints.Int(1)
	assert.False(t, ok, "0x8000 is missing")
	assert.Equal(t, []int32{5, 7}, ints.Ints())

	floats := FloatValue(1.5, math.Float32frombits(floatEndOfVectorBits), 3)
	assert.Equal(t, []float32{1.5}, floats.Floats())

	f, ok := FloatValue(2.25).Float(0)
	assert.True(t, ok)
	assert.InDelta(t, 2.25, f, 0)

	assert.True(t, FlagValue().IsFlag())
	assert.Empty(t, StringValue("").String())
	assert.Equal(t, "AC", Value{Type: TypeChar, Len: 4, Data: []byte("AC\x00\x00")}.String())
}

func TestType_Size(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, TypeMissing.Size())
	assert.Equal(t, 1, TypeChar.Size())
	assert.Equal(t, 2, TypeInt16.Size())
	assert.Equal(t, 4, TypeFloat.Size())
	assert.Equal(t, -1, Type(9).Size())
	assert.Equal(t, "type(9)", Type(9).String())
}
