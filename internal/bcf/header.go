// Package bcf decodes and encodes BCF2, the binary variant call format.
// Records keep their variable sections as raw typed-value spans; accessors
// decode them on demand.
package bcf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vertti/htsio/internal/errs"
	"github.com/vertti/htsio/internal/window"
)

const (
	magicPrefix = "BCF\x02"
	magicLen    = 5
)

// Line is one "##key=value" meta line.
type Line struct {
	Key   string
	Value string
}

// Header is the decoded BCF header. It is immutable once read.
type Header struct {
	// Text is the VCF header text as stored, without NUL padding.
	Text  string
	Lines []Line
	// Contigs maps a record's chromosome id to its name.
	Contigs []string
	// Dict is the string dictionary shared by FILTER, INFO and FORMAT ids.
	// PASS is always entry 0.
	Dict    []string
	Samples []string
}

// ParseHeader builds a Header from VCF header text.
func ParseHeader(text string) (*Header, error) {
	h := &Header{Text: strings.TrimRight(text, "\x00")}
	contigs := indexer{}
	dict := indexer{}
	dict.add("PASS", 0)

	for _, line := range strings.Split(h.Text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case line == "":
		case strings.HasPrefix(line, "##"):
			key, value, ok := strings.Cut(line[2:], "=")
			if !ok {
				return nil, errs.New(errs.MalformedHeader, "bcf header", -1, "meta line without '=': %q", line)
			}
			h.Lines = append(h.Lines, Line{Key: key, Value: value})
			switch key {
			case "contig":
				if err := contigs.addStructured(value); err != nil {
					return nil, err
				}
			case "FILTER", "INFO", "FORMAT":
				if err := dict.addStructured(value); err != nil {
					return nil, err
				}
			}
		case strings.HasPrefix(line, "#CHROM"):
			cols := strings.Split(line, "\t")
			if len(cols) > 9 {
				h.Samples = cols[9:]
			}
		default:
			return nil, errs.New(errs.MalformedHeader, "bcf header", -1, "unexpected header line %q", line)
		}
	}
	h.Contigs = contigs.names
	h.Dict = dict.names
	return h, nil
}

// Contig returns the name of chromosome id, or "." when unknown.
func (h *Header) Contig(id int32) string {
	if id < 0 || int(id) >= len(h.Contigs) || h.Contigs[id] == "" {
		return "."
	}
	return h.Contigs[id]
}

// Key returns dictionary entry i, or "." when unknown.
func (h *Header) Key(i int32) string {
	if i < 0 || int(i) >= len(h.Dict) || h.Dict[i] == "" {
		return "."
	}
	return h.Dict[i]
}

// KeyIndex returns the dictionary index of id, or -1.
func (h *Header) KeyIndex(id string) int32 {
	for i, name := range h.Dict {
		if name == id {
			return int32(i) //nolint:gosec // dictionary is small
		}
	}
	return -1
}

// indexer assigns dictionary positions: an explicit IDX wins, otherwise
// the next position in order of first appearance.
type indexer struct {
	names []string
	seen  map[string]bool
}

func (ix *indexer) add(name string, idx int) {
	if ix.seen == nil {
		ix.seen = make(map[string]bool)
	}
	if ix.seen[name] {
		return
	}
	ix.seen[name] = true
	if idx < 0 {
		idx = len(ix.names)
	}
	for len(ix.names) <= idx {
		ix.names = append(ix.names, "")
	}
	ix.names[idx] = name
}

// addStructured adds the ID of a "<ID=...,IDX=n,...>" value.
func (ix *indexer) addStructured(value string) error {
	id := structuredField(value, "ID")
	if id == "" {
		return errs.New(errs.MalformedHeader, "bcf header", -1, "structured line without ID: %q", value)
	}
	idx := -1
	if s := structuredField(value, "IDX"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 1<<24 {
			return errs.New(errs.MalformedHeader, "bcf header", -1, "bad IDX %q for %s", s, id)
		}
		idx = n
	}
	ix.add(id, idx)
	return nil
}

// structuredField returns the value of name in a "<K=V,K=V>" string. Quoted
// values may contain commas.
func structuredField(input, name string) string {
	input = strings.TrimPrefix(strings.TrimSuffix(input, ">"), "<")
	for input != "" {
		key, rest, ok := strings.Cut(input, "=")
		if !ok {
			return ""
		}
		var val string
		if strings.HasPrefix(rest, "\"") {
			end := strings.Index(rest[1:], "\"")
			if end < 0 {
				return ""
			}
			val, rest = rest[1:1+end], rest[2+end:]
			rest = strings.TrimPrefix(rest, ",")
		} else {
			val, rest, _ = strings.Cut(rest, ",")
		}
		if key == name {
			return val
		}
		input = rest
	}
	return ""
}

// readHeader consumes the magic and header text at the front of buf.
func readHeader(buf *window.Buffer) (*Header, error) {
	b, err := buf.Read(magicLen + 4)
	if err != nil {
		return nil, fmt.Errorf("bcf header: %w", err)
	}
	if len(b) < magicLen+4 {
		return nil, errs.New(errs.TruncatedInput, "bcf header", buf.Tell(), "have %d bytes", len(b))
	}
	if string(b[:4]) != magicPrefix || (b[4] != 1 && b[4] != 2) {
		return nil, errs.New(errs.MalformedHeader, "bcf header", buf.Tell(), "magic % x", b[:magicLen])
	}
	n := int(binary.LittleEndian.Uint32(b[magicLen:]))
	if b, err = buf.Read(magicLen + 4 + n); err != nil {
		return nil, fmt.Errorf("bcf header: %w", err)
	}
	if len(b) < magicLen+4+n {
		return nil, errs.New(errs.TruncatedInput, "bcf header", buf.Tell(), "text of %d bytes, have %d", n, len(b)-magicLen-4)
	}
	h, err := ParseHeader(string(b[magicLen+4 : magicLen+4+n]))
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			e.Offset = buf.Tell()
		}
		return nil, err
	}
	buf.DropUntil(magicLen + 4 + n)
	return h, nil
}

func appendHeader(dst []byte, h *Header) []byte {
	dst = append(dst, magicPrefix...)
	dst = append(dst, 2)
	text := h.Text
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(text)+1)) //nolint:gosec // header text fits
	dst = append(dst, text...)
	return append(dst, 0)
}
