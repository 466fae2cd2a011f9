package bgzf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/vertti/htsio/internal/errs"
)

// DefaultLevel is the compression level used when none is given.
const DefaultLevel = flate.DefaultCompression

// Codec compresses and decompresses single BGZF blocks. It keeps its flate
// state between calls, so reuse one Codec per goroutine. A Codec is not
// safe for concurrent use.
type Codec struct {
	level int

	src      bytes.Reader
	inflater io.ReadCloser
	deflater *flate.Writer
	sink     appendWriter
}

// NewCodec returns a Codec that compresses at the given flate level.
func NewCodec(level int) (*Codec, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("bgzf: invalid compression level %d", level)
	}
	return &Codec{level: level}, nil
}

func newDecoder() *Codec {
	return &Codec{level: DefaultLevel}
}

// Decompress inflates the single block at the start of block into dst and
// returns the number of bytes written. The trailer's CRC32 and length are
// checked against the output.
func (c *Codec) Decompress(block, dst []byte) (int, error) {
	h, err := ParseHeader(block)
	if err != nil {
		return 0, err
	}
	if len(block) < h.Size {
		return 0, errs.New(errs.TruncatedInput, "bgzf block", -1, "need %d bytes, have %d", h.Size, len(block))
	}
	trailer := block[h.Size-TrailerSize : h.Size]
	wantCRC := binary.LittleEndian.Uint32(trailer[0:4])
	wantLen := int(binary.LittleEndian.Uint32(trailer[4:8]))
	if wantLen > MaxBlockSize {
		return 0, errs.New(errs.MalformedHeader, "bgzf block", -1, "uncompressed size %d exceeds %d", wantLen, MaxBlockSize)
	}
	if wantLen > len(dst) {
		return 0, fmt.Errorf("bgzf: destination holds %d bytes, block needs %d", len(dst), wantLen)
	}

	c.src.Reset(block[h.Len : h.Size-TrailerSize])
	if c.inflater == nil {
		c.inflater = flate.NewReader(&c.src)
	} else if err := c.inflater.(flate.Resetter).Reset(&c.src, nil); err != nil { //nolint:forcetypeassert // flate readers implement Resetter
		return 0, fmt.Errorf("resetting inflater: %w", err)
	}

	n, err := io.ReadFull(c.inflater, dst[:wantLen])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return n, errs.New(errs.ChecksumMismatch, "bgzf block", -1, "length %d, trailer says %d", n, wantLen)
		}
		return n, errs.Wrap(errs.ChecksumMismatch, "bgzf block", -1, fmt.Errorf("inflating: %w", err))
	}
	// The deflate stream must end exactly here.
	var extra [1]byte
	if k, err := c.inflater.Read(extra[:]); k != 0 || !errors.Is(err, io.EOF) {
		if k != 0 {
			return n, errs.New(errs.ChecksumMismatch, "bgzf block", -1, "payload longer than trailer length %d", wantLen)
		}
		return n, errs.Wrap(errs.ChecksumMismatch, "bgzf block", -1, fmt.Errorf("inflating: %w", err))
	}
	if got := crc32.ChecksumIEEE(dst[:n]); got != wantCRC {
		return n, errs.New(errs.ChecksumMismatch, "bgzf block", -1, "crc %08x, trailer says %08x", got, wantCRC)
	}
	return n, nil
}

// Compress appends one complete block holding src to dst and returns the
// extended slice. src must not exceed MaxUncompressedChunk bytes.
func (c *Codec) Compress(dst, src []byte) ([]byte, error) {
	if len(src) > MaxUncompressedChunk {
		return dst, fmt.Errorf("bgzf: %d bytes exceeds block input limit %d", len(src), MaxUncompressedChunk)
	}
	start := len(dst)
	dst = append(dst, headerTemplate[:]...)

	c.sink.b = dst
	if c.deflater == nil {
		w, err := flate.NewWriter(&c.sink, c.level)
		if err != nil {
			return dst[:start], fmt.Errorf("creating deflater: %w", err)
		}
		c.deflater = w
	} else {
		c.deflater.Reset(&c.sink)
	}
	if _, err := c.deflater.Write(src); err != nil {
		return dst[:start], fmt.Errorf("deflating: %w", err)
	}
	if err := c.deflater.Close(); err != nil {
		return dst[:start], fmt.Errorf("deflating: %w", err)
	}
	dst = c.sink.b
	c.sink.b = nil

	dst = binary.LittleEndian.AppendUint32(dst, crc32.ChecksumIEEE(src))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(src))) //nolint:gosec // bounded by MaxUncompressedChunk

	size := len(dst) - start
	if size > MaxBlockSize {
		return dst[:start], fmt.Errorf("bgzf: compressed block of %d bytes exceeds %d", size, MaxBlockSize)
	}
	binary.LittleEndian.PutUint16(dst[start+16:], uint16(size-1)) //nolint:gosec // size checked above
	return dst, nil
}

// appendWriter is an io.Writer that appends to a slice.
type appendWriter struct {
	b []byte
}

func (w *appendWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}
