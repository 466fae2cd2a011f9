package bam

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// coreSize is the fixed part of a record after block_size.
const coreSize = 32

// Flags holds the SAM bitwise flags.
type Flags uint16

// SAM flags.
const (
	Paired        Flags = 0x1
	ProperPair    Flags = 0x2
	Unmapped      Flags = 0x4
	MateUnmapped  Flags = 0x8
	Reverse       Flags = 0x10
	MateReverse   Flags = 0x20
	Read1         Flags = 0x40
	Read2         Flags = 0x80
	Secondary     Flags = 0x100
	QCFail        Flags = 0x200
	Duplicate     Flags = 0x400
	Supplementary Flags = 0x800
)

// Record is one alignment. The byte slice fields and Seq are views into
// the reader's buffer: they are valid until the next call to Next. Use
// Clone to keep a record longer.
type Record struct {
	RefID     int32
	Pos       int32 // 0-based
	MapQ      uint8
	Bin       uint16
	Flags     Flags
	NextRefID int32
	NextPos   int32
	TLen      int32

	Name  []byte // without the NUL terminator
	Cigar Cigar
	Seq   Seq
	Qual  []byte // raw Phred scores, 0xff filled when absent
	Aux   []byte // undecoded auxiliary tags
}

// Clone returns a deep copy of r that owns its bytes.
func (r *Record) Clone() *Record {
	c := *r
	c.Name = bytes.Clone(r.Name)
	c.Cigar = bytes.Clone(r.Cigar)
	c.Seq = NewSeq(bytes.Clone(r.Seq.packed), r.Seq.n)
	c.Qual = bytes.Clone(r.Qual)
	c.Aux = bytes.Clone(r.Aux)
	return &c
}

// unmarshal decodes the record body b, which excludes block_size. The
// returned error describes the inconsistency; the caller adds position.
func (r *Record) unmarshal(b []byte) error { //nolint:gosec // two's complement fields
	if len(b) < coreSize {
		return fmt.Errorf("record of %d bytes shorter than the %d byte core", len(b), coreSize)
	}
	le := binary.LittleEndian
	r.RefID = int32(le.Uint32(b[0:]))
	r.Pos = int32(le.Uint32(b[4:]))
	nameLen := int(b[8])
	r.MapQ = b[9]
	r.Bin = le.Uint16(b[10:])
	nCigar := int(le.Uint16(b[12:]))
	r.Flags = Flags(le.Uint16(b[14:]))
	seqLen := int(le.Uint32(b[16:]))
	r.NextRefID = int32(le.Uint32(b[20:]))
	r.NextPos = int32(le.Uint32(b[24:]))
	r.TLen = int32(le.Uint32(b[28:]))

	if seqLen < 0 || seqLen > len(b) {
		return fmt.Errorf("l_seq %d exceeds record size %d", seqLen, len(b))
	}
	p := coreSize
	end := p + nameLen + 4*nCigar + (seqLen+1)/2 + seqLen
	if end > len(b) {
		return fmt.Errorf("variable fields need %d bytes, record has %d", end, len(b))
	}
	if nameLen == 0 || b[p+nameLen-1] != 0 {
		return fmt.Errorf("read name of length %d is not NUL terminated", nameLen)
	}
	r.Name = b[p : p+nameLen-1 : p+nameLen-1]
	p += nameLen
	r.Cigar = Cigar(b[p : p+4*nCigar : p+4*nCigar])
	p += 4 * nCigar
	r.Seq = NewSeq(b[p:p+(seqLen+1)/2:p+(seqLen+1)/2], seqLen)
	p += (seqLen + 1) / 2
	r.Qual = b[p : p+seqLen : p+seqLen]
	p += seqLen
	r.Aux = b[p:len(b):len(b)]
	return nil
}

// appendRecord appends the binary encoding of r, block_size included.
func appendRecord(dst []byte, r *Record) ([]byte, error) { //nolint:gosec // lengths checked above the encoding
	if len(r.Name)+1 > 255 {
		return dst, fmt.Errorf("bam: read name %q longer than 254 bytes", r.Name)
	}
	if len(r.Cigar)%4 != 0 || r.Cigar.Len() > 0xffff {
		return dst, fmt.Errorf("bam: cigar of %d bytes is not a whole number of ops", len(r.Cigar))
	}
	n := r.Seq.Len()
	if len(r.Seq.packed) != (n+1)/2 {
		return dst, fmt.Errorf("bam: packed sequence of %d bytes for %d bases", len(r.Seq.packed), n)
	}
	if len(r.Qual) != 0 && len(r.Qual) != n {
		return dst, fmt.Errorf("bam: %d qualities for %d bases", len(r.Qual), n)
	}
	size := coreSize + len(r.Name) + 1 + len(r.Cigar) + len(r.Seq.packed) + n + len(r.Aux)

	le := binary.LittleEndian
	dst = le.AppendUint32(dst, uint32(size))
	dst = le.AppendUint32(dst, uint32(r.RefID))
	dst = le.AppendUint32(dst, uint32(r.Pos))
	dst = append(dst, byte(len(r.Name)+1), r.MapQ)
	dst = le.AppendUint16(dst, r.Bin)
	dst = le.AppendUint16(dst, uint16(r.Cigar.Len()))
	dst = le.AppendUint16(dst, uint16(r.Flags))
	dst = le.AppendUint32(dst, uint32(n))
	dst = le.AppendUint32(dst, uint32(r.NextRefID))
	dst = le.AppendUint32(dst, uint32(r.NextPos))
	dst = le.AppendUint32(dst, uint32(r.TLen))
	dst = append(dst, r.Name...)
	dst = append(dst, 0)
	dst = append(dst, r.Cigar...)
	dst = append(dst, r.Seq.packed...)
	if len(r.Qual) == 0 {
		for range n {
			dst = append(dst, missingQual)
		}
	} else {
		dst = append(dst, r.Qual...)
	}
	dst = append(dst, r.Aux...)
	return dst, nil
}

// Reg2Bin returns the UCSC bin of the 0-based half-open interval [beg, end).
func Reg2Bin(beg, end int) uint16 { //nolint:gosec // bins fit 16 bits
	end--
	switch {
	case beg>>14 == end>>14:
		return uint16(((1<<15)-1)/7 + (beg >> 14))
	case beg>>17 == end>>17:
		return uint16(((1<<12)-1)/7 + (beg >> 17))
	case beg>>20 == end>>20:
		return uint16(((1<<9)-1)/7 + (beg >> 20))
	case beg>>23 == end>>23:
		return uint16(((1<<6)-1)/7 + (beg >> 23))
	case beg>>26 == end>>26:
		return uint16(((1<<3)-1)/7 + (beg >> 26))
	}
	return 0
}
