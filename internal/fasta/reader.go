// Package fasta reads FASTA sequences from a window.Buffer and gives
// random access to them through a FAIDX index.
package fasta

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vertti/htsio/internal/errs"
	"github.com/vertti/htsio/internal/window"
)

// Record is one FASTA sequence.
type Record struct {
	ID   string // header up to the first space or tab
	Desc string // rest of the header line
	Seq  []byte // line breaks removed
}

// Clone returns a copy of rec that owns its sequence.
func (rec *Record) Clone() *Record {
	c := *rec
	c.Seq = bytes.Clone(rec.Seq)
	return &c
}

// Reader decodes FASTA records. Record.Seq is reused between calls to Next.
type Reader struct {
	buf *window.Buffer
	rec Record
	seq []byte
	err error

	pending int // bytes of the current record still in the window

	// named is set by SeekEntry: the header has been skipped and the next
	// record takes this ID.
	named *string

	entry  Entry
	ragged bool
}

// NewReader returns a Reader over buf.
func NewReader(buf *window.Buffer) *Reader {
	return &Reader{buf: buf, seq: make([]byte, 0, 512)}
}

// Next reads the next record. It returns io.EOF when no more records are
// available.
func (r *Reader) Next() (*Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.pending > 0 {
		r.buf.DropUntil(r.pending)
		r.pending = 0
	}

	pos := 0
	if r.named != nil {
		r.rec.ID, r.rec.Desc = *r.named, ""
		r.named = nil
	} else {
		for {
			eof, err := r.buf.EOF(pos)
			if err != nil {
				return nil, r.fail(fmt.Errorf("fasta: %w", err))
			}
			if eof {
				r.pending = pos
				return nil, io.EOF
			}
			if c := r.at(pos); c != '\n' && c != '\r' {
				break
			}
			pos++
		}
		if r.at(pos) != '>' {
			return nil, r.fail(errs.New(errs.MalformedRecord, "fasta", r.buf.Tell()+int64(pos), "record must start with '>', found %q", r.at(pos)))
		}
		end, err := r.buf.ReadUntil('\n', pos)
		if err != nil {
			return nil, r.fail(fmt.Errorf("fasta header: %w", err))
		}
		r.rec.ID, r.rec.Desc = splitHeader(trimCR(r.buf.View(pos+1, end)))
		pos = r.next(end)
	}

	r.entry = Entry{Name: r.rec.ID, Offset: r.buf.Tell() + int64(pos)}
	r.ragged = false
	short := false
	r.seq = r.seq[:0]
	for first := true; ; first = false {
		eof, err := r.buf.EOF(pos)
		if err != nil {
			return nil, r.fail(fmt.Errorf("fasta sequence: %w", err))
		}
		if eof || r.at(pos) == '>' {
			break
		}
		end, err := r.buf.ReadUntil('\n', pos)
		if err != nil {
			return nil, r.fail(fmt.Errorf("fasta sequence: %w", err))
		}
		line := trimCR(r.buf.View(pos, end))
		r.seq = append(r.seq, line...)

		bases, width := int64(len(line)), int64(r.next(end)-pos)
		if first {
			r.entry.LineBases, r.entry.LineWidth = bases, width
		} else if bases > 0 && (short || bases > r.entry.LineBases) {
			r.ragged = true
		}
		if bases < r.entry.LineBases {
			short = true
		}
		pos = r.next(end)
	}
	r.entry.Length = int64(len(r.seq))
	r.rec.Seq = r.seq
	r.pending = pos
	return &r.rec, nil
}

// Entry returns the index entry of the record last returned by Next.
func (r *Reader) Entry() Entry {
	return r.entry
}

// Tell returns the absolute offset of the next record.
func (r *Reader) Tell() int64 {
	return r.buf.Tell() + int64(r.pending)
}

// Seek positions the reader at the absolute offset off, which must be the
// start of a record header.
func (r *Reader) Seek(off int64) error {
	if err := r.buf.Seek(off); err != nil {
		return err
	}
	r.pending, r.err, r.named = 0, nil, nil
	return nil
}

// SeekEntry positions the reader at the sequence data of e. The next call to
// Next returns the record with ID e.Name.
func (r *Reader) SeekEntry(e Entry) error {
	if err := r.Seek(e.Offset); err != nil {
		return err
	}
	r.named = &e.Name
	return nil
}

// Fetch returns bases [start, end) of the sequence e describes, located
// through its line geometry. It leaves the reader inside the sequence; call
// Seek or SeekEntry before the next Next.
func (r *Reader) Fetch(e Entry, start, end int64) ([]byte, error) {
	if start < 0 || end > e.Length || start > end {
		return nil, fmt.Errorf("fasta: region %d-%d outside %s of length %d", start, end, e.Name, e.Length)
	}
	if start == end {
		return []byte{}, nil
	}
	if e.LineBases <= 0 || e.LineWidth < e.LineBases {
		return nil, fmt.Errorf("fasta: %s has invalid line geometry %d/%d", e.Name, e.LineBases, e.LineWidth)
	}
	if err := r.Seek(e.Offset + start/e.LineBases*e.LineWidth + start%e.LineBases); err != nil {
		return nil, err
	}

	want := int(end - start)
	out := make([]byte, 0, want)
	pos := 0
	for len(out) < want {
		eof, err := r.buf.EOF(pos)
		if err != nil {
			return nil, r.fail(fmt.Errorf("fasta fetch: %w", err))
		}
		if eof {
			return nil, r.fail(errs.New(errs.TruncatedInput, "fasta fetch", r.buf.Tell()+int64(pos), "%s ends after %d of %d bases", e.Name, len(out), want))
		}
		lineEnd, err := r.buf.ReadUntil('\n', pos)
		if err != nil {
			return nil, r.fail(fmt.Errorf("fasta fetch: %w", err))
		}
		line := trimCR(r.buf.View(pos, lineEnd))
		out = append(out, line[:min(len(line), want-len(out))]...)
		pos = r.next(lineEnd)
	}
	r.pending = pos
	return out, nil
}

func (r *Reader) at(pos int) byte {
	return r.buf.View(pos, pos+1)[0]
}

// next returns the offset after the line ending at end.
func (r *Reader) next(end int) int {
	return min(end+1, r.buf.Len())
}

func (r *Reader) fail(err error) error {
	r.err = err
	return err
}

func trimCR(line []byte) []byte {
	return bytes.TrimSuffix(line, []byte{'\r'})
}

func splitHeader(line []byte) (id, desc string) {
	if i := bytes.IndexAny(line, " \t"); i >= 0 {
		return string(line[:i]), string(bytes.TrimLeft(line[i+1:], " \t"))
	}
	return string(line), ""
}
