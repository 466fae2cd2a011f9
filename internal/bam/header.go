// Package bam decodes and encodes the binary alignment format. Records are
// views into a window.Buffer holding the decompressed stream.
package bam

import (
	"encoding/binary"
	"fmt"

	"github.com/vertti/htsio/internal/errs"
	"github.com/vertti/htsio/internal/window"
)

const (
	magic = "BAM\x01"

	// maxNameLength bounds reference names so corrupt lengths cannot force
	// huge allocations.
	maxNameLength = 1 << 16
)

// Reference is one entry of the header's reference dictionary.
type Reference struct {
	Name string
	Len  int
}

// Header is the decoded BAM header. It is immutable once read.
type Header struct {
	// Text is the SAM header text, possibly empty.
	Text string
	Refs []Reference
}

// RefName returns the name of reference id, or "*" when id is out of range
// (unmapped reads carry -1).
func (h *Header) RefName(id int32) string {
	if id < 0 || int(id) >= len(h.Refs) {
		return "*"
	}
	return h.Refs[id].Name
}

// readHeader consumes the header at the front of buf.
func readHeader(buf *window.Buffer) (*Header, error) {
	b, err := need(buf, 0, 8, "bam header")
	if err != nil {
		return nil, err
	}
	if string(b[:4]) != magic {
		return nil, errs.New(errs.MalformedHeader, "bam header", buf.Tell(), "magic % x", b[:4])
	}
	lText := int(int32(binary.LittleEndian.Uint32(b[4:8]))) //nolint:gosec // sign matters
	if lText < 0 {
		return nil, errs.New(errs.MalformedHeader, "bam header", buf.Tell(), "negative l_text %d", lText)
	}
	if b, err = need(buf, 8, lText+4, "bam header"); err != nil {
		return nil, err
	}
	h := &Header{Text: trimNUL(b[8 : 8+lText])}
	nRef := int(int32(binary.LittleEndian.Uint32(b[8+lText:]))) //nolint:gosec // sign matters
	if nRef < 0 {
		return nil, errs.New(errs.MalformedHeader, "bam header", buf.Tell(), "negative n_ref %d", nRef)
	}
	buf.DropUntil(8 + lText + 4)

	h.Refs = make([]Reference, 0, min(nRef, 1<<16))
	for range nRef {
		b, err := need(buf, 0, 4, "bam reference")
		if err != nil {
			return nil, err
		}
		lName := int(int32(binary.LittleEndian.Uint32(b))) //nolint:gosec // sign matters
		if lName < 1 || lName > maxNameLength {
			return nil, errs.New(errs.MalformedHeader, "bam reference", buf.Tell(), "name length %d", lName)
		}
		if b, err = need(buf, 4, lName+4, "bam reference"); err != nil {
			return nil, err
		}
		h.Refs = append(h.Refs, Reference{
			Name: trimNUL(b[4 : 4+lName]),
			Len:  int(int32(binary.LittleEndian.Uint32(b[4+lName:]))), //nolint:gosec // sign matters
		})
		buf.DropUntil(4 + lName + 4)
	}
	return h, nil
}

// appendHeader appends the binary encoding of h.
func appendHeader(dst []byte, h *Header) []byte {
	dst = append(dst, magic...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(h.Text))) //nolint:gosec // header text fits
	dst = append(dst, h.Text...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(h.Refs))) //nolint:gosec // reference count fits
	for _, ref := range h.Refs {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(ref.Name)+1)) //nolint:gosec // bounded name
		dst = append(dst, ref.Name...)
		dst = append(dst, 0)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(ref.Len)) //nolint:gosec // reference length fits
	}
	return dst
}

// need makes sure n bytes are buffered after offset from and returns the
// whole live region. A short source is a truncation at the front's offset.
func need(buf *window.Buffer, from, n int, op string) ([]byte, error) {
	b, err := buf.Read(from + n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(b) < from+n {
		return nil, errs.New(errs.TruncatedInput, op, buf.Tell(), "need %d bytes, have %d", from+n, len(b))
	}
	return b, nil
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
