package bam

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

const cigarOps = "MIDNSHP=X"

// CigarOpType is the operation of a CIGAR element.
type CigarOpType uint8

// CIGAR operations, in BAM code order.
const (
	CigarMatch CigarOpType = iota
	CigarInsertion
	CigarDeletion
	CigarSkipped
	CigarSoftClipped
	CigarHardClipped
	CigarPadded
	CigarEqual
	CigarMismatch
)

func (t CigarOpType) String() string {
	if int(t) < len(cigarOps) {
		return cigarOps[t : t+1]
	}
	return "?"
}

// CigarOp is one packed CIGAR word: the length in the high 28 bits and the
// operation in the low 4.
type CigarOp uint32

// NewCigarOp packs an operation and its length.
func NewCigarOp(t CigarOpType, n int) CigarOp {
	return CigarOp(uint32(n)<<4 | uint32(t)) //nolint:gosec // lengths fit 28 bits
}

// Type returns the operation.
func (op CigarOp) Type() CigarOpType { return CigarOpType(op & 0xf) }

// Len returns the operation length.
func (op CigarOp) Len() int { return int(op >> 4) }

func (op CigarOp) String() string {
	return strconv.Itoa(op.Len()) + op.Type().String()
}

// Cigar is a view of the packed little-endian CIGAR words of a record.
type Cigar []byte

// Len returns the number of operations.
func (c Cigar) Len() int { return len(c) / 4 }

// At returns operation i.
func (c Cigar) At(i int) CigarOp {
	return CigarOp(binary.LittleEndian.Uint32(c[4*i:]))
}

// String renders the CIGAR in SAM text form, "*" when empty.
func (c Cigar) String() string {
	if c.Len() == 0 {
		return "*"
	}
	b := make([]byte, 0, 4*c.Len())
	for i := range c.Len() {
		op := c.At(i)
		b = strconv.AppendInt(b, int64(op.Len()), 10)
		b = append(b, op.Type().String()...)
	}
	return string(b)
}

// ReferenceLen returns the number of reference bases the alignment spans.
func (c Cigar) ReferenceLen() int {
	n := 0
	for i := range c.Len() {
		switch op := c.At(i); op.Type() {
		case CigarMatch, CigarDeletion, CigarSkipped, CigarEqual, CigarMismatch:
			n += op.Len()
		}
	}
	return n
}

// EncodeCigar parses a SAM text CIGAR such as "10M2I5S" into packed words.
// "*" and "" give an empty Cigar.
func EncodeCigar(text string) (Cigar, error) {
	if text == "*" || text == "" {
		return nil, nil
	}
	var out Cigar
	n, digits := 0, 0
	for i := range len(text) {
		c := text[i]
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
			digits++
			if n >= 1<<28 {
				return nil, fmt.Errorf("bam: cigar length overflow in %q", text)
			}
			continue
		}
		t := -1
		for k := range len(cigarOps) {
			if cigarOps[k] == c {
				t = k
				break
			}
		}
		if t < 0 || digits == 0 {
			return nil, fmt.Errorf("bam: invalid cigar %q at %d", text, i)
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(NewCigarOp(CigarOpType(t), n)))
		n, digits = 0, 0
	}
	if digits != 0 {
		return nil, fmt.Errorf("bam: cigar %q ends without an operation", text)
	}
	return out, nil
}
