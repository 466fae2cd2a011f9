package bcf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"iter"
	"math"

	"github.com/vertti/htsio/internal/errs"
)

// sharedFixedSize covers chrom through n_fmt_sample.
const sharedFixedSize = 24

// Record is one variant site. Byte fields are views into the reader's
// buffer, valid until the next call to Next; Clone keeps a copy.
type Record struct {
	ChromID int32
	Pos     int32 // 0-based
	RLen    int32
	Qual    float32
	HasQual bool

	NInfo   uint16
	NAllele uint16
	NFormat uint8
	NSample uint32

	ID     []byte // "" when missing
	Ref    []byte
	Alt    []byte // the n_allele-1 alt alleles as consecutive typed strings
	Filter Value  // int vector of dictionary indices
	Info   []byte // n_info (key, value) pairs
	Format []byte // the individual block
}

// Alleles returns the reference allele followed by the alternates.
func (r *Record) Alleles() ([]string, error) {
	out := make([]string, 0, r.NAllele)
	if r.NAllele == 0 {
		return out, nil
	}
	out = append(out, string(r.Ref))
	c := cursor{b: r.Alt}
	for c.p < len(c.b) {
		v, err := c.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v.String())
	}
	return out, nil
}

// Filters returns the dictionary indices of the filters the site failed.
// An empty result means the filter field is missing.
func (r *Record) Filters() []int32 {
	return r.Filter.Ints()
}

// InfoField is one decoded INFO entry.
type InfoField struct {
	Key   int32 // dictionary index
	Value Value
}

// InfoFields iterates the INFO section. Values are views into the record.
func (r *Record) InfoFields() iter.Seq2[InfoField, error] {
	return func(yield func(InfoField, error) bool) {
		c := cursor{b: r.Info}
		for range r.NInfo {
			key, err := c.typedInt()
			if err != nil {
				yield(InfoField{}, err)
				return
			}
			v, err := c.value()
			if err != nil {
				yield(InfoField{}, err)
				return
			}
			if !yield(InfoField{Key: int32(key), Value: v}, nil) { //nolint:gosec // decoded from an int32 at most
				return
			}
		}
	}
}

// FormatField is one FORMAT key with its per-sample values laid out
// sample after sample, Value.Len elements each.
type FormatField struct {
	Key   int32
	Value Value
}

// Sample returns the values of sample i.
func (f FormatField) Sample(i int) Value {
	width := f.Value.Len * f.Value.Type.Size()
	return Value{Type: f.Value.Type, Len: f.Value.Len, Data: f.Value.Data[i*width : (i+1)*width : (i+1)*width]}
}

// FormatFields iterates the individual block.
func (r *Record) FormatFields() iter.Seq2[FormatField, error] {
	return func(yield func(FormatField, error) bool) {
		c := cursor{b: r.Format}
		for range r.NFormat {
			key, t, n, err := c.formatHeader()
			if err != nil {
				yield(FormatField{}, err)
				return
			}
			size := n * t.Size() * int(r.NSample)
			if err := c.need(size); err != nil {
				yield(FormatField{}, err)
				return
			}
			v := Value{Type: t, Len: n, Data: c.b[c.p : c.p+size : c.p+size]}
			c.p += size
			if !yield(FormatField{Key: int32(key), Value: v}, nil) { //nolint:gosec // decoded from an int32 at most
				return
			}
		}
	}
}

// Clone returns a deep copy of r that owns its bytes.
func (r *Record) Clone() *Record {
	c := *r
	c.ID = bytes.Clone(r.ID)
	c.Ref = bytes.Clone(r.Ref)
	c.Alt = bytes.Clone(r.Alt)
	c.Filter.Data = bytes.Clone(r.Filter.Data)
	c.Info = bytes.Clone(r.Info)
	c.Format = bytes.Clone(r.Format)
	return &c
}

func (c *cursor) formatHeader() (key int, t Type, n int, err error) {
	if key, err = c.typedInt(); err != nil {
		return 0, 0, 0, err
	}
	if t, n, err = c.descriptor(); err != nil {
		return 0, 0, 0, err
	}
	return key, t, n, nil
}

// unmarshal decodes a record block of lShared+lIndiv bytes. The cursor must
// land exactly on both section boundaries.
func (r *Record) unmarshal(b []byte, lShared int) error {
	c := cursor{b: b[:lShared]}
	if err := c.need(sharedFixedSize); err != nil {
		return err
	}
	le := binary.LittleEndian
	r.ChromID = int32(le.Uint32(b[0:])) //nolint:gosec // two's complement
	r.Pos = int32(le.Uint32(b[4:]))     //nolint:gosec // two's complement
	r.RLen = int32(le.Uint32(b[8:]))    //nolint:gosec // two's complement
	qbits := le.Uint32(b[12:])
	r.Qual, r.HasQual = math.Float32frombits(qbits), qbits != floatMissingBits
	infoAllele := le.Uint32(b[16:])
	r.NInfo, r.NAllele = uint16(infoAllele&0xffff), uint16(infoAllele>>16) //nolint:gosec // masked
	fmtSample := le.Uint32(b[20:])
	r.NFormat, r.NSample = uint8(fmtSample>>24), fmtSample&0xffffff
	c.p = sharedFixedSize

	id, err := c.value()
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}
	r.ID = id.Data
	if id.Type == TypeChar {
		r.ID = bytes.TrimRight(id.Data, "\x00")
	}

	r.Ref, r.Alt = nil, nil
	if r.NAllele > 0 {
		ref, err := c.value()
		if err != nil {
			return fmt.Errorf("ref allele: %w", err)
		}
		r.Ref = ref.Data
		start := c.p
		for i := 1; i < int(r.NAllele); i++ {
			if _, err := c.value(); err != nil {
				return fmt.Errorf("alt allele %d: %w", i, err)
			}
		}
		r.Alt = c.b[start:c.p:c.p]
	}

	if r.Filter, err = c.value(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if r.Filter.Type != TypeMissing && r.Filter.Type != TypeInt8 && r.Filter.Type != TypeInt16 && r.Filter.Type != TypeInt32 {
		return errs.New(errs.UnsupportedEncoding, "bcf filter", -1, "%s vector", r.Filter.Type)
	}

	start := c.p
	for i := range int(r.NInfo) {
		if _, err := c.typedInt(); err != nil {
			return fmt.Errorf("info key %d: %w", i, err)
		}
		if _, err := c.value(); err != nil {
			return fmt.Errorf("info value %d: %w", i, err)
		}
	}
	r.Info = c.b[start:c.p:c.p]
	if c.p != lShared {
		return errs.New(errs.MalformedRecord, "bcf record", -1, "shared section ends at %d, l_shared is %d", c.p, lShared)
	}

	c = cursor{b: b, p: lShared}
	for i := range int(r.NFormat) {
		_, t, n, err := c.formatHeader()
		if err != nil {
			return fmt.Errorf("format field %d: %w", i, err)
		}
		if err := c.skip(n * t.Size() * int(r.NSample)); err != nil {
			return fmt.Errorf("format field %d: %w", i, err)
		}
	}
	if c.p != len(b) {
		return errs.New(errs.MalformedRecord, "bcf record", -1, "individual section ends at %d, block is %d", c.p, len(b))
	}
	r.Format = b[lShared:len(b):len(b)]
	return nil
}
