package bcf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Variant is the input to Writer.Write.
type Variant struct {
	ChromID int32
	Pos     int32 // 0-based
	// RLen defaults to the length of the reference allele when zero.
	RLen    int32
	Qual    float32
	HasQual bool
	ID      string
	Alleles []string // reference first
	Filters []int32
	Info    []InfoField
	// Format holds per-sample values: each Value has Len elements per
	// sample and NSample*Len elements in total.
	Format  []FormatField
	NSample int
}

// Writer encodes BCF records to an uncompressed stream. Wrap a bgzf.Writer
// to produce a BCF file.
type Writer struct {
	w      io.Writer
	shared []byte
	indiv  []byte
	out    []byte
}

// NewWriter writes h to w and returns a Writer for the records that follow.
func NewWriter(w io.Writer, h *Header) (*Writer, error) {
	bw := &Writer{w: w}
	if _, err := w.Write(appendHeader(nil, h)); err != nil {
		return nil, fmt.Errorf("writing bcf header: %w", err)
	}
	return bw, nil
}

// Write encodes one record.
func (bw *Writer) Write(v *Variant) error {
	if len(v.Alleles) > math.MaxUint16 || len(v.Info) > math.MaxUint16 || len(v.Format) > math.MaxUint8 || v.NSample > 0xffffff {
		return errors.New("bcf: variant field counts exceed the record limits")
	}
	rlen := v.RLen
	if rlen == 0 && len(v.Alleles) > 0 {
		rlen = int32(len(v.Alleles[0])) //nolint:gosec // allele lengths fit
	}
	qual := uint32(floatMissingBits)
	if v.HasQual {
		qual = math.Float32bits(v.Qual)
	}

	le := binary.LittleEndian
	s := bw.shared[:0]
	s = le.AppendUint32(s, uint32(v.ChromID)) //nolint:gosec // two's complement
	s = le.AppendUint32(s, uint32(v.Pos))     //nolint:gosec // two's complement
	s = le.AppendUint32(s, uint32(rlen))      //nolint:gosec // two's complement
	s = le.AppendUint32(s, qual)
	s = le.AppendUint32(s, uint32(len(v.Alleles))<<16|uint32(len(v.Info))) //nolint:gosec // checked above
	s = le.AppendUint32(s, uint32(len(v.Format))<<24|uint32(v.NSample))    //nolint:gosec // checked above
	s = AppendString(s, v.ID)
	for _, a := range v.Alleles {
		s = AppendString(s, a)
	}
	if len(v.Filters) == 0 {
		s = AppendDescriptor(s, TypeMissing, 0)
	} else {
		s = AppendInts(s, v.Filters)
	}
	for _, f := range v.Info {
		s = AppendInts(s, []int32{f.Key})
		s = AppendValue(s, f.Value)
	}

	d := bw.indiv[:0]
	for _, f := range v.Format {
		if f.Value.Len*f.Value.Type.Size()*v.NSample != len(f.Value.Data) {
			return fmt.Errorf("bcf: format key %d has %d bytes for %d samples of %d %s", f.Key, len(f.Value.Data), v.NSample, f.Value.Len, f.Value.Type)
		}
		d = AppendInts(d, []int32{f.Key})
		d = AppendValue(d, f.Value)
	}
	bw.shared, bw.indiv = s, d

	out := le.AppendUint32(bw.out[:0], uint32(len(s))) //nolint:gosec // record sizes fit
	out = le.AppendUint32(out, uint32(len(d)))         //nolint:gosec // record sizes fit
	out = append(out, s...)
	out = append(out, d...)
	bw.out = out
	if _, err := bw.w.Write(out); err != nil {
		return fmt.Errorf("writing bcf record: %w", err)
	}
	return nil
}

// IntValue builds an integer Value of the narrowest width.
func IntValue(vals ...int32) Value {
	t := intType(vals)
	return Value{Type: t, Len: len(vals), Data: appendIntData(nil, t, vals)}
}

// FloatValue builds a float Value.
func FloatValue(vals ...float32) Value {
	data := make([]byte, 0, 4*len(vals))
	for _, f := range vals {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
	}
	return Value{Type: TypeFloat, Len: len(vals), Data: data}
}

// StringValue builds a char Value.
func StringValue(s string) Value {
	return Value{Type: TypeChar, Len: len(s), Data: []byte(s)}
}

// FlagValue is the value of a present INFO flag.
func FlagValue() Value {
	return Value{Type: TypeMissing}
}
