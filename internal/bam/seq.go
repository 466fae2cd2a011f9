package bam

// seqAlphabet maps a 4-bit BAM base code to its IUPAC letter.
const seqAlphabet = "=ACMGRSVTWYHKDBN"

// PhredOffset is the ASCII offset of SAM text qualities.
const PhredOffset = 33

// missingQual fills the quality field of a record without qualities.
const missingQual = 0xff

var nibbleTable [256]byte

func init() {
	// Anything unrecognised is N.
	for i := range nibbleTable {
		nibbleTable[i] = 15
	}
	for code := range len(seqAlphabet) {
		c := seqAlphabet[code]
		nibbleTable[c] = byte(code)
		if c >= 'A' && c <= 'Z' {
			nibbleTable[c+'a'-'A'] = byte(code)
		}
	}
}

// Seq is a read sequence packed two bases per byte, the first base in the
// high nibble. It is a view into the record's bytes.
type Seq struct {
	packed []byte
	n      int
}

// NewSeq wraps packed nibbles holding n bases.
func NewSeq(packed []byte, n int) Seq {
	return Seq{packed: packed, n: n}
}

// Len returns the number of bases.
func (s Seq) Len() int { return s.n }

// Packed returns the raw nibble bytes, (Len()+1)/2 of them.
func (s Seq) Packed() []byte { return s.packed }

// Code returns the 4-bit code of base i.
func (s Seq) Code(i int) byte {
	b := s.packed[i>>1]
	if i&1 == 0 {
		return b >> 4
	}
	return b & 0xf
}

// At returns base i as a letter from "=ACMGRSVTWYHKDBN".
func (s Seq) At(i int) byte {
	return seqAlphabet[s.Code(i)]
}

// String materialises the sequence.
func (s Seq) String() string {
	return string(s.AppendTo(nil))
}

// AppendTo appends the sequence letters to dst.
func (s Seq) AppendTo(dst []byte) []byte {
	for i := range s.n {
		dst = append(dst, s.At(i))
	}
	return dst
}

// AppendPackedSeq appends the nibble encoding of the letters in seq to dst.
// Letters outside the alphabet encode as N.
func AppendPackedSeq(dst []byte, seq []byte) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, (len(seq)+1)/2)...)
	for i, c := range seq {
		code := nibbleTable[c]
		if i&1 == 0 {
			dst[start+i/2] = code << 4
		} else {
			dst[start+i/2] |= code
		}
	}
	return dst
}

// EncodeSeq packs a text sequence.
func EncodeSeq(seq string) Seq {
	return Seq{packed: AppendPackedSeq(nil, []byte(seq)), n: len(seq)}
}

// AppendQualText appends qual as Phred+33 text. A missing quality string
// renders as "*".
func AppendQualText(dst, qual []byte) []byte {
	if len(qual) == 0 || qual[0] == missingQual {
		return append(dst, '*')
	}
	for _, q := range qual {
		dst = append(dst, q+PhredOffset)
	}
	return dst
}

// ParseQualText converts Phred+33 text to raw qualities. "*" means no
// qualities and returns nil.
func ParseQualText(text string) []byte {
	if text == "*" {
		return nil
	}
	qual := make([]byte, len(text))
	for i := range len(text) {
		qual[i] = text[i] - PhredOffset
	}
	return qual
}
