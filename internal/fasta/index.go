package fasta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vertti/htsio/internal/errs"
)

// Entry is one line of a .fai index.
type Entry struct {
	Name      string
	Length    int64 // bases
	Offset    int64 // byte offset of the first base
	LineBases int64
	LineWidth int64 // bytes per line including the line terminator
}

// Index maps sequence names to their entries, in file order.
type Index struct {
	Entries []Entry
	byName  map[string]int
}

// NewIndex builds an Index over entries. Later duplicates of a name are
// ignored by Lookup.
func NewIndex(entries []Entry) *Index {
	idx := &Index{Entries: entries, byName: make(map[string]int, len(entries))}
	for i, e := range entries {
		if _, ok := idx.byName[e.Name]; !ok {
			idx.byName[e.Name] = i
		}
	}
	return idx
}

// Lookup returns the entry for name.
func (idx *Index) Lookup(name string) (Entry, bool) {
	i, ok := idx.byName[name]
	if !ok {
		return Entry{}, false
	}
	return idx.Entries[i], true
}

// ReadIndex parses a .fai index: tab-separated name, length, offset,
// linebases and linewidth. Extra columns are ignored.
func ReadIndex(r io.Reader) (*Index, error) {
	var (
		entries []Entry
		off     int64
	)
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := sc.Text()
		lineOff := off
		off += int64(len(text)) + 1
		text = strings.TrimSuffix(text, "\r")
		if text == "" {
			continue
		}
		f := strings.Split(text, "\t")
		if len(f) < 5 {
			return nil, errs.New(errs.MalformedRecord, "fai", lineOff, "line %d has %d fields, want 5", line, len(f))
		}
		e := Entry{Name: f[0]}
		for i, dst := range []*int64{&e.Length, &e.Offset, &e.LineBases, &e.LineWidth} {
			n, err := strconv.ParseInt(f[i+1], 10, 64)
			if err != nil || n < 0 {
				return nil, errs.New(errs.MalformedRecord, "fai", lineOff, "line %d field %d: %q is not a length", line, i+2, f[i+1])
			}
			*dst = n
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading fai: %w", err)
	}
	return NewIndex(entries), nil
}

// WriteTo writes idx in .fai format.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, e := range idx.Entries {
		m, err := fmt.Fprintf(bw, "%s\t%d\t%d\t%d\t%d\n", e.Name, e.Length, e.Offset, e.LineBases, e.LineWidth)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// GenerateIndex reads every record from r and writes the resulting index
// to w. Sequences whose lines are not all the same length, apart from the
// last, cannot be indexed.
func GenerateIndex(w io.Writer, r *Reader) (*Index, error) {
	var entries []Entry
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if r.ragged {
			return nil, errs.New(errs.MalformedRecord, "fai", r.entry.Offset, "sequence %q has lines of differing length", rec.ID)
		}
		entries = append(entries, r.Entry())
	}
	idx := NewIndex(entries)
	if _, err := idx.WriteTo(w); err != nil {
		return nil, fmt.Errorf("writing fai: %w", err)
	}
	return idx, nil
}

// Region is a 0-based half-open interval of a named sequence. End is -1
// for the end of the sequence.
type Region struct {
	Name       string
	Start, End int64
}

// ParseRegion parses "name", "name:start" or "name:start-end" with 1-based
// inclusive coordinates, as samtools does. A name that itself contains a
// colon is taken whole when the suffix is not a range.
func ParseRegion(s string) (Region, error) {
	if s == "" {
		return Region{}, errors.New("fasta: empty region")
	}
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return Region{Name: s, End: -1}, nil
	}
	name, span := s[:i], strings.ReplaceAll(s[i+1:], ",", "")
	from, to, hasTo := strings.Cut(span, "-")
	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil {
		return Region{Name: s, End: -1}, nil //nolint:nilerr // the colon belongs to the name
	}
	if start < 1 {
		return Region{}, fmt.Errorf("fasta: region %q starts before 1", s)
	}
	reg := Region{Name: name, Start: start - 1, End: -1}
	if hasTo {
		end, err := strconv.ParseInt(to, 10, 64)
		if err != nil || end < start {
			return Region{}, fmt.Errorf("fasta: invalid region end in %q", s)
		}
		reg.End = end
	}
	return reg, nil
}

// Resolve clamps reg to the length of e.
func (reg Region) Resolve(e Entry) (start, end int64) {
	start, end = min(reg.Start, e.Length), e.Length
	if reg.End >= 0 {
		end = min(reg.End, e.Length)
	}
	return start, end
}
