package bcf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vertti/htsio/internal/errs"
	"github.com/vertti/htsio/internal/window"
)

// Reader decodes records from a decompressed BCF stream.
type Reader struct {
	buf     *window.Buffer
	h       *Header
	err     error
	done    bool
	rec     Record
	pending int
}

// NewReader reads the header from buf and returns a Reader positioned at
// the first record.
func NewReader(buf *window.Buffer) (*Reader, error) {
	h, err := readHeader(buf)
	if err != nil {
		return nil, err
	}
	return &Reader{buf: buf, h: h}, nil
}

// Header returns the header read by NewReader.
func (r *Reader) Header() *Header {
	return r.h
}

// Next returns the next record, or io.EOF at a clean end of stream. The
// record stays valid until the next call.
func (r *Reader) Next() (*Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.done {
		return nil, io.EOF
	}
	if r.pending > 0 {
		r.buf.DropUntil(r.pending)
		r.pending = 0
	}

	b, err := r.buf.Read(8)
	switch {
	case err != nil:
		return nil, r.fail(fmt.Errorf("bcf record: %w", err))
	case len(b) == 0:
		r.done = true
		return nil, io.EOF
	case len(b) < 8:
		return nil, r.fail(errs.New(errs.TruncatedInput, "bcf record", r.buf.Tell(), "length words cut short after %d bytes", len(b)))
	}
	lShared := int(binary.LittleEndian.Uint32(b[0:]))
	lIndiv := int(binary.LittleEndian.Uint32(b[4:]))
	total := 8 + lShared + lIndiv
	if b, err = r.buf.Read(total); err != nil {
		return nil, r.fail(fmt.Errorf("bcf record: %w", err))
	}
	if len(b) < total {
		return nil, r.fail(errs.New(errs.TruncatedInput, "bcf record", r.buf.Tell(), "l_shared %d + l_indiv %d, %d bytes left", lShared, lIndiv, len(b)-8))
	}
	if err := r.rec.unmarshal(b[8:total], lShared); err != nil {
		var e *errs.Error
		if errors.As(err, &e) && e.Offset < 0 {
			e.Offset = r.buf.Tell()
		}
		if errs.KindOf(err) == 0 {
			err = errs.Wrap(errs.MalformedRecord, "bcf record", r.buf.Tell(), err)
		}
		return nil, r.fail(err)
	}
	r.pending = total
	return &r.rec, nil
}

// Tell returns the decompressed offset of the next record.
func (r *Reader) Tell() int64 {
	return r.buf.Tell() + int64(r.pending)
}

func (r *Reader) fail(err error) error {
	r.err = err
	return err
}
