// Package htsfile opens genomics files by extension: it picks the byte
// source, stacks a BGZF decompressor on top when the format needs one, and
// hands out the matching record reader.
package htsfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vertti/htsio/internal/bam"
	"github.com/vertti/htsio/internal/bcf"
	"github.com/vertti/htsio/internal/bgzf"
	"github.com/vertti/htsio/internal/errs"
	"github.com/vertti/htsio/internal/fasta"
	"github.com/vertti/htsio/internal/window"
)

// Format identifies a file format.
type Format uint8

// Supported formats.
const (
	FormatUnknown Format = iota
	FormatBGZF           // raw BGZF stream
	FormatBAM
	FormatBCF
	FormatFASTA
)

func (f Format) String() string {
	switch f {
	case FormatBGZF:
		return "bgzf"
	case FormatBAM:
		return "bam"
	case FormatBCF:
		return "bcf"
	case FormatFASTA:
		return "fasta"
	}
	return "unknown"
}

// Compressed reports whether files of format f are BGZF containers.
func (f Format) Compressed() bool {
	return f == FormatBGZF || f == FormatBAM || f == FormatBCF
}

var extensions = map[string]Format{
	".bam":   FormatBAM,
	".bcf":   FormatBCF,
	".fa":    FormatFASTA,
	".fasta": FormatFASTA,
	".fna":   FormatFASTA,
	".gz":    FormatBGZF,
	".bgz":   FormatBGZF,
	".bgzf":  FormatBGZF,
}

// FormatOf returns the format for path's extension, compared without case.
func FormatOf(path string) (Format, error) {
	if f, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return f, nil
	}
	return FormatUnknown, errs.New(errs.UnknownExtension, "htsfile", -1, "no format for %q", path)
}

// Options configure Open. The zero value reads with the sequential BGZF
// reader from a regular file.
type Options struct {
	// Workers > 1 decompresses with a pipeline of that many workers.
	Workers int
	// Mmap maps regular files into memory instead of reading them.
	Mmap bool
	// Format overrides extension detection; required for "-".
	Format Format
	// Stdin is read for the path "-". Defaults to os.Stdin.
	Stdin io.Reader
}

// File is an open genomics file.
type File struct {
	Format Format
	Path   string

	raw      *window.Buffer // bytes as stored
	buf      *window.Buffer // decompressed bytes
	pipeline *bgzf.Pipeline
}

// Open opens path, choosing the format from its extension unless
// opts.Format is set. The path "-" reads standard input.
func Open(ctx context.Context, path string, opts Options) (*File, error) {
	format := opts.Format
	if format == FormatUnknown {
		var err error
		if format, err = FormatOf(path); err != nil {
			return nil, err
		}
	}

	raw, err := openSource(path, opts)
	if err != nil {
		return nil, err
	}
	f := &File{Format: format, Path: path, raw: raw, buf: raw}
	if !format.Compressed() {
		return f, nil
	}
	if opts.Workers > 1 {
		f.pipeline = bgzf.NewPipeline(ctx, raw, opts.Workers)
		f.buf = window.New(f.pipeline)
	} else {
		f.buf = window.New(bgzf.NewReader(raw))
	}
	return f, nil
}

func openSource(path string, opts Options) (*window.Buffer, error) {
	switch {
	case path == "-":
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		// Hide Seek and Close: standard input is neither ours to close nor
		// reliably seekable.
		return window.New(struct{ io.Reader }{in}), nil
	case opts.Mmap:
		return window.OpenMmap(path)
	default:
		return window.OpenFile(path)
	}
}

// Buffer returns the decompressed byte window.
func (f *File) Buffer() *window.Buffer {
	return f.buf
}

// BAM reads the BAM header and returns a record reader.
func (f *File) BAM() (*bam.Reader, error) {
	if err := f.expect(FormatBAM); err != nil {
		return nil, err
	}
	return bam.NewReader(f.buf)
}

// BCF reads the BCF header and returns a record reader.
func (f *File) BCF() (*bcf.Reader, error) {
	if err := f.expect(FormatBCF); err != nil {
		return nil, err
	}
	return bcf.NewReader(f.buf)
}

// FASTA returns a sequence reader.
func (f *File) FASTA() (*fasta.Reader, error) {
	if err := f.expect(FormatFASTA); err != nil {
		return nil, err
	}
	return fasta.NewReader(f.buf), nil
}

func (f *File) expect(want Format) error {
	if f.Format != want {
		return fmt.Errorf("htsfile: %s is %s, not %s", f.Path, f.Format, want)
	}
	return nil
}

// Close stops any decompression workers and releases the source.
func (f *File) Close() error {
	if f.pipeline != nil {
		// The pipeline closes raw.
		return f.pipeline.Close()
	}
	return f.raw.Close()
}
