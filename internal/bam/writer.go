package bam

import (
	"fmt"
	"io"
)

// Writer encodes BAM records to an uncompressed stream. Wrap a bgzf.Writer
// to produce a BAM file.
type Writer struct {
	w   io.Writer
	buf []byte
}

// NewWriter writes h to w and returns a Writer for the records that follow.
func NewWriter(w io.Writer, h *Header) (*Writer, error) {
	bw := &Writer{w: w}
	bw.buf = appendHeader(bw.buf[:0], h)
	if _, err := w.Write(bw.buf); err != nil {
		return nil, fmt.Errorf("writing bam header: %w", err)
	}
	return bw, nil
}

// Write encodes one record.
func (bw *Writer) Write(r *Record) error {
	var err error
	if bw.buf, err = appendRecord(bw.buf[:0], r); err != nil {
		return err
	}
	if _, err := bw.w.Write(bw.buf); err != nil {
		return fmt.Errorf("writing bam record: %w", err)
	}
	return nil
}
