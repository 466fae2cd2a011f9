package bam

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vertti/htsio/internal/errs"
	"github.com/vertti/htsio/internal/window"
)

// state tracks the reader once the header is in: NewReader covers the
// uninitialized and header states.
type state uint8

const (
	stateStreaming state = iota
	stateExhausted
	stateFailed
)

// Reader decodes records from a decompressed BAM stream.
type Reader struct {
	buf   *window.Buffer
	h     *Header
	state state
	err   error

	rec     Record
	pending int // bytes of the last returned record, dropped on the next call
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

// Next returns the next record, or io.EOF when the stream ends cleanly at a
// record boundary. The record and its views stay valid until the next call.
func (r *Reader) Next() (*Record, error) {
	switch r.state {
	case stateExhausted:
		return nil, io.EOF
	case stateFailed:
		return nil, r.err
	}
	if r.pending > 0 {
		r.buf.DropUntil(r.pending)
		r.pending = 0
	}

	b, err := r.buf.Read(4)
	switch {
	case err != nil:
		return nil, r.fail(fmt.Errorf("bam record: %w", err))
	case len(b) == 0:
		r.state = stateExhausted
		return nil, io.EOF
	case len(b) < 4:
		return nil, r.fail(errs.New(errs.TruncatedInput, "bam record", r.buf.Tell(), "block_size cut short after %d bytes", len(b)))
	}
	size := int(int32(binary.LittleEndian.Uint32(b))) //nolint:gosec // sign matters
	if size < coreSize {
		return nil, r.fail(errs.New(errs.MalformedRecord, "bam record", r.buf.Tell(), "block_size %d", size))
	}
	if b, err = r.buf.Read(4 + size); err != nil {
		return nil, r.fail(fmt.Errorf("bam record: %w", err))
	}
	if len(b) < 4+size {
		return nil, r.fail(errs.New(errs.TruncatedInput, "bam record", r.buf.Tell(), "block_size %d, %d bytes left", size, len(b)-4))
	}
	if err := r.rec.unmarshal(b[4 : 4+size]); err != nil {
		return nil, r.fail(errs.Wrap(errs.MalformedRecord, "bam record", r.buf.Tell(), err))
	}
	r.pending = 4 + size
	return &r.rec, nil
}

// Tell returns the decompressed offset of the next record.
func (r *Reader) Tell() int64 {
	return r.buf.Tell() + int64(r.pending)
}

func (r *Reader) fail(err error) error {
	r.state = stateFailed
	r.err = err
	return err
}
