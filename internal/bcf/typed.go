package bcf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/vertti/htsio/internal/errs"
)

// Type is the low nibble of a typed-value descriptor.
type Type uint8

// Value types.
const (
	TypeMissing Type = 0
	TypeInt8    Type = 1
	TypeInt16   Type = 2
	TypeInt32   Type = 3
	TypeFloat   Type = 5
	TypeChar    Type = 7
)

// overflowLen in a descriptor's high nibble means the real length follows
// as a typed integer.
const overflowLen = 15

// Sentinel values.
const (
	int8Missing      = -128
	int8EndOfVector  = -127
	int16Missing     = -32768
	int16EndOfVector = -32767
	int32Missing     = math.MinInt32
	int32EndOfVector = math.MinInt32 + 1

	floatMissingBits     = 0x7F800001
	floatEndOfVectorBits = 0x7F800002
)

// Size returns the width in bytes of one element of t, 0 for missing and
// -1 for an unknown type.
func (t Type) Size() int {
	switch t {
	case TypeMissing:
		return 0
	case TypeInt8, TypeChar:
		return 1
	case TypeInt16:
		return 2
	case TypeInt32, TypeFloat:
		return 4
	}
	return -1
}

func (t Type) String() string {
	switch t {
	case TypeMissing:
		return "missing"
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeFloat:
		return "float"
	case TypeChar:
		return "char"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Value is a typed vector: Len elements of Type, stored little-endian in
// Data. Data is a view into the record.
type Value struct {
	Type Type
	Len  int
	Data []byte
}

// Int returns element i of an integer vector. ok is false for missing and
// end-of-vector elements or when v is not an integer vector.
func (v Value) Int(i int) (n int32, ok bool) {
	switch v.Type {
	case TypeInt8:
		x := int8(v.Data[i])
		return int32(x), x != int8Missing && x != int8EndOfVector
	case TypeInt16:
		x := int16(binary.LittleEndian.Uint16(v.Data[2*i:])) //nolint:gosec // two's complement
		return int32(x), x != int16Missing && x != int16EndOfVector
	case TypeInt32:
		x := int32(binary.LittleEndian.Uint32(v.Data[4*i:])) //nolint:gosec // two's complement
		return x, x != int32Missing && x != int32EndOfVector
	}
	return 0, false
}

// Ints returns the present elements of an integer vector, stopping at the
// first end-of-vector marker.
func (v Value) Ints() []int32 {
	out := make([]int32, 0, v.Len)
	for i := range v.Len {
		n, ok := v.Int(i)
		if !ok {
			if v.EndOfVector(i) {
				break
			}
			continue
		}
		out = append(out, n)
	}
	return out
}

// Float returns element i of a float vector. ok is false for missing and
// end-of-vector elements.
func (v Value) Float(i int) (f float32, ok bool) {
	if v.Type != TypeFloat {
		return 0, false
	}
	bits := binary.LittleEndian.Uint32(v.Data[4*i:])
	return math.Float32frombits(bits), bits != floatMissingBits && bits != floatEndOfVectorBits
}

// Floats returns the present elements of a float vector.
func (v Value) Floats() []float32 {
	out := make([]float32, 0, v.Len)
	for i := range v.Len {
		f, ok := v.Float(i)
		if !ok {
			if v.EndOfVector(i) {
				break
			}
			continue
		}
		out = append(out, f)
	}
	return out
}

// EndOfVector reports whether element i is the end-of-vector padding that
// closes a short per-sample vector.
func (v Value) EndOfVector(i int) bool {
	switch v.Type {
	case TypeInt8:
		return int8(v.Data[i]) == int8EndOfVector
	case TypeInt16:
		return int16(binary.LittleEndian.Uint16(v.Data[2*i:])) == int16EndOfVector //nolint:gosec // two's complement
	case TypeInt32:
		return int32(binary.LittleEndian.Uint32(v.Data[4*i:])) == int32EndOfVector //nolint:gosec // two's complement
	case TypeFloat:
		return binary.LittleEndian.Uint32(v.Data[4*i:]) == floatEndOfVectorBits
	}
	return false
}

// String returns a char vector with trailing NUL padding removed.
func (v Value) String() string {
	if v.Type != TypeChar {
		return ""
	}
	b := v.Data
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// IsFlag reports whether v is the empty missing value that encodes a
// present INFO flag.
func (v Value) IsFlag() bool {
	return v.Type == TypeMissing && v.Len == 0
}

// DecodeValue decodes one typed value at the start of b and returns it
// with the number of bytes consumed.
func DecodeValue(b []byte) (Value, int, error) {
	c := cursor{b: b}
	v, err := c.value()
	return v, c.p, err
}

// cursor reads typed values from a record block. Errors carry offset -1;
// the reader fills in the stream position.
type cursor struct {
	b []byte
	p int
}

func (c *cursor) need(n int) error {
	if n < 0 || c.p+n > len(c.b) {
		return errs.New(errs.MalformedRecord, "bcf typed value", -1, "need %d bytes at %d, block has %d", n, c.p, len(c.b))
	}
	return nil
}

func (c *cursor) descriptor() (Type, int, error) {
	if err := c.need(1); err != nil {
		return 0, 0, err
	}
	d := c.b[c.p]
	c.p++
	t, n := Type(d&0xf), int(d>>4)
	if t.Size() < 0 {
		return 0, 0, errs.New(errs.UnsupportedEncoding, "bcf typed value", -1, "descriptor %#02x has type %d", d, t)
	}
	if n == overflowLen {
		var err error
		if n, err = c.overflowLength(); err != nil {
			return 0, 0, err
		}
		if n < 0 {
			return 0, 0, errs.New(errs.UnsupportedEncoding, "bcf typed value", -1, "negative overflow length %d", n)
		}
	}
	return t, n, nil
}

// overflowLength reads the integer scalar that follows an overflow descriptor.
// Its own descriptor must be a plain int scalar: overflow lengths do not
// nest.
func (c *cursor) overflowLength() (int, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	d := c.b[c.p]
	t := Type(d & 0xf)
	switch {
	case d>>4 != 1:
		return 0, errs.New(errs.UnsupportedEncoding, "bcf typed value", -1, "overflow length descriptor %#02x is not a scalar", d)
	case t != TypeInt8 && t != TypeInt16 && t != TypeInt32:
		return 0, errs.New(errs.UnsupportedEncoding, "bcf typed value", -1, "overflow length of type %s", t)
	}
	c.p++
	if err := c.need(t.Size()); err != nil {
		return 0, err
	}
	v := Value{Type: t, Len: 1, Data: c.b[c.p : c.p+t.Size()]}
	c.p += t.Size()
	n, ok := v.Int(0)
	if !ok {
		return 0, errs.New(errs.UnsupportedEncoding, "bcf typed value", -1, "missing overflow length")
	}
	return int(n), nil
}

// typedInt reads a descriptor-prefixed integer scalar.
func (c *cursor) typedInt() (int, error) {
	v, err := c.value()
	if err != nil {
		return 0, err
	}
	if v.Len != 1 {
		return 0, errs.New(errs.UnsupportedEncoding, "bcf typed int", -1, "%s vector of %d where a scalar int was expected", v.Type, v.Len)
	}
	switch v.Type {
	case TypeInt8, TypeInt16, TypeInt32:
		n, _ := v.Int(0)
		return int(n), nil
	}
	return 0, errs.New(errs.UnsupportedEncoding, "bcf typed int", -1, "%s where an int was expected", v.Type)
}

func (c *cursor) value() (Value, error) {
	t, n, err := c.descriptor()
	if err != nil {
		return Value{}, err
	}
	size := n * t.Size()
	if err := c.need(size); err != nil {
		return Value{}, err
	}
	v := Value{Type: t, Len: n, Data: c.b[c.p : c.p+size : c.p+size]}
	c.p += size
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	x := binary.LittleEndian.Uint32(c.b[c.p:])
	c.p += 4
	return x, nil
}

func (c *cursor) skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.p += n
	return nil
}

// AppendDescriptor appends the descriptor for n elements of t, with the
// overflow form when n >= 15.
func AppendDescriptor(dst []byte, t Type, n int) []byte {
	if n < overflowLen {
		return append(dst, byte(n)<<4|byte(t))
	}
	dst = append(dst, overflowLen<<4|byte(t))
	return AppendInts(dst, []int32{int32(n)}) //nolint:gosec // vector lengths fit int32
}

// intType picks the narrowest type that holds every value without hitting
// the reserved sentinels.
func intType(vals []int32) Type {
	t := TypeInt8
	for _, v := range vals {
		switch {
		case v >= -120 && v <= math.MaxInt8:
		case v >= -32760 && v <= math.MaxInt16:
			t = max(t, TypeInt16)
		default:
			return TypeInt32
		}
	}
	return t
}

// AppendInts appends vals as a typed integer vector of the narrowest width.
func AppendInts(dst []byte, vals []int32) []byte {
	t := intType(vals)
	dst = AppendDescriptor(dst, t, len(vals))
	return appendIntData(dst, t, vals)
}

func appendIntData(dst []byte, t Type, vals []int32) []byte {
	for _, v := range vals {
		switch t {
		case TypeInt8:
			dst = append(dst, byte(int8(v))) //nolint:gosec // range checked by intType
		case TypeInt16:
			dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(v))) //nolint:gosec // range checked by intType
		default:
			dst = binary.LittleEndian.AppendUint32(dst, uint32(v)) //nolint:gosec // two's complement
		}
	}
	return dst
}

// AppendFloats appends vals as a typed float vector.
func AppendFloats(dst []byte, vals []float32) []byte {
	dst = AppendDescriptor(dst, TypeFloat, len(vals))
	for _, f := range vals {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

// AppendString appends s as a typed char vector. The empty string is the
// missing value.
func AppendString(dst []byte, s string) []byte {
	if s == "" {
		return AppendDescriptor(dst, TypeMissing, 0)
	}
	dst = AppendDescriptor(dst, TypeChar, len(s))
	return append(dst, s...)
}

// AppendValue appends v as is: its descriptor then its data.
func AppendValue(dst []byte, v Value) []byte {
	dst = AppendDescriptor(dst, v.Type, v.Len)
	return append(dst, v.Data...)
}
