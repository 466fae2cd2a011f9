// Package bgzf reads and writes BGZF, the blocked gzip container used by BAM
// and BCF. A BGZF stream is a series of independent gzip members, each
// holding at most 64 KiB of data and carrying its own compressed size in a
// "BC" extra subfield.
package bgzf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vertti/htsio/internal/errs"
	"github.com/vertti/htsio/internal/window"
)

// Block geometry.
const (
	// HeaderSize is the size of a block header with the standard single
	// BC extra subfield.
	HeaderSize = 18

	// TrailerSize is the CRC32 plus ISIZE trailer.
	TrailerSize = 8

	// MaxBlockSize bounds both the compressed and the uncompressed size
	// of a block.
	MaxBlockSize = 0x10000

	// MaxUncompressedChunk is the largest input Compress accepts, chosen so
	// that even incompressible data fits in MaxBlockSize once compressed.
	MaxUncompressedChunk = 0xff00

	// fixedHeaderSize is the gzip header up to and including XLEN.
	fixedHeaderSize = 12
)

// Terminator is the empty block that ends a well-formed BGZF file.
var Terminator = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00, 0x42, 0x43,
	0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// headerTemplate is a block header with BSIZE left as zero.
var headerTemplate = [HeaderSize]byte{
	0x1f, 0x8b, // gzip magic
	0x08,       // CM = deflate
	0x04,       // FLG = FEXTRA
	0, 0, 0, 0, // MTIME
	0x00,       // XFL
	0xff,       // OS = unknown
	0x06, 0x00, // XLEN
	'B', 'C',   // subfield id
	0x02, 0x00, // SLEN
	0x00, 0x00, // BSIZE, patched per block
}

// Header is the decoded part of a block header that matters for framing.
type Header struct {
	// Size is the total block size in bytes: header, payload and trailer.
	Size int
	// Len is the header length, 12 + XLEN.
	Len int
}

// ParseHeader decodes the header at the start of b. b must hold at least
// 12 bytes plus the extra field.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < fixedHeaderSize {
		return Header{}, errs.New(errs.TruncatedInput, "bgzf header", -1, "have %d bytes", len(b))
	}
	if b[0] != 0x1f || b[1] != 0x8b || b[2] != 0x08 || b[3]&0x04 == 0 {
		return Header{}, errs.New(errs.MalformedHeader, "bgzf header", -1, "not a gzip member with extra field: % x", b[:4])
	}
	xlen := int(binary.LittleEndian.Uint16(b[10:12]))
	if len(b) < fixedHeaderSize+xlen {
		return Header{}, errs.New(errs.TruncatedInput, "bgzf header", -1, "extra field of %d bytes cut short", xlen)
	}
	extra := b[fixedHeaderSize : fixedHeaderSize+xlen]
	for len(extra) >= 4 {
		slen := int(binary.LittleEndian.Uint16(extra[2:4]))
		if 4+slen > len(extra) {
			break
		}
		if extra[0] == 'B' && extra[1] == 'C' && slen == 2 {
			size := int(binary.LittleEndian.Uint16(extra[4:6])) + 1
			h := Header{Size: size, Len: fixedHeaderSize + xlen}
			if size < h.Len+TrailerSize {
				return Header{}, errs.New(errs.MalformedHeader, "bgzf header", -1, "block size %d too small", size)
			}
			return h, nil
		}
		extra = extra[4+slen:]
	}
	return Header{}, errs.New(errs.MalformedHeader, "bgzf header", -1, "missing BC subfield")
}

// nextBlock returns a view of the next whole compressed block at the front
// of src without consuming it, or io.EOF if src ends at a block boundary.
func nextBlock(src *window.Buffer) ([]byte, error) {
	b, err := src.Read(fixedHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("reading block header: %w", err)
	}
	if len(b) == 0 {
		return nil, io.EOF
	}
	if len(b) < fixedHeaderSize {
		return nil, errs.New(errs.TruncatedInput, "bgzf header", src.Tell(), "have %d bytes", len(b))
	}
	xlen := int(binary.LittleEndian.Uint16(b[10:12]))
	if b, err = src.Read(fixedHeaderSize + xlen); err != nil {
		return nil, fmt.Errorf("reading block header: %w", err)
	}
	h, err := ParseHeader(b)
	if err != nil {
		return nil, atOffset(err, src.Tell())
	}
	if b, err = src.Read(h.Size); err != nil {
		return nil, fmt.Errorf("reading block: %w", err)
	}
	if len(b) < h.Size {
		return nil, errs.New(errs.TruncatedInput, "bgzf block", src.Tell(), "need %d bytes, have %d", h.Size, len(b))
	}
	return b[:h.Size], nil
}

// atOffset fills in the stream offset of an *errs.Error raised without one.
func atOffset(err error, off int64) error {
	var e *errs.Error
	if errors.As(err, &e) && e.Offset < 0 {
		e.Offset = off
	}
	return err
}
