package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/vertti/htsio/internal/bgzf"
	"github.com/vertti/htsio/internal/htsfile"
)

const ioBufferSize = 1 << 20

// fileFlags are shared by the commands that read through htsfile.
type fileFlags struct {
	workers int
	mmap    bool
	format  string
}

func (f *fileFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "decompression workers; more than 1 runs the concurrent pipeline")
	cmd.Flags().BoolVar(&f.mmap, "mmap", false, "memory-map the input file")
	cmd.Flags().StringVarP(&f.format, "format", "F", "", "input format (bam, bcf, fasta, bgzf); required for stdin")
}

func (f *fileFlags) options(cmd *cobra.Command) (htsfile.Options, error) {
	opts := htsfile.Options{Workers: f.workers, Mmap: f.mmap, Stdin: cmd.InOrStdin()}
	switch strings.ToLower(f.format) {
	case "":
	case "bam":
		opts.Format = htsfile.FormatBAM
	case "bcf":
		opts.Format = htsfile.FormatBCF
	case "fa", "fasta":
		opts.Format = htsfile.FormatFASTA
	case "bgzf", "gz":
		opts.Format = htsfile.FormatBGZF
	default:
		return opts, fmt.Errorf("unknown format %q", f.format)
	}
	return opts, nil
}

// inputKind is what bgzip found at the start of its input.
type inputKind int

const (
	inputPlain inputKind = iota
	inputGzip            // plain gzip, inflated on read
	inputBGZF            // already blocked; read as raw compressed bytes
)

// input is an opened bgzip source.
type input struct {
	r     io.Reader
	kind  inputKind
	close func()
}

// openInput opens path for bgzip and sniffs its first bytes. BGZF input is
// passed through as is; other gzip input, detected by magic bytes or a .gz
// name, is inflated so it can be reblocked.
func openInput(path string, stdin io.Reader) (input, error) {
	if path == "" || path == "-" {
		return sniffInput(path, stdin, func() {})
	}

	f, err := os.Open(path) //nolint:gosec // CLI tool needs to open user-specified files
	if err != nil {
		return input{}, fmt.Errorf("cannot open input: %w", err)
	}
	return sniffInput(path, f, func() { _ = f.Close() })
}

func sniffInput(path string, in io.Reader, closeInput func()) (input, error) {
	br := bufio.NewReaderSize(in, ioBufferSize)
	head, err := br.Peek(bgzf.HeaderSize)
	if err != nil && !errors.Is(err, io.EOF) {
		closeInput()
		return input{}, fmt.Errorf("cannot inspect input: %w", err)
	}

	if _, err := bgzf.ParseHeader(head); err == nil {
		return input{r: br, kind: inputBGZF, close: closeInput}, nil
	}
	gzipMagic := len(head) >= 2 && head[0] == 0x1f && head[1] == 0x8b
	if !gzipMagic && !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return input{r: br, kind: inputPlain, close: closeInput}, nil
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		closeInput()
		return input{}, fmt.Errorf("cannot open gzip input: %w", err)
	}
	return input{r: gz, kind: inputGzip, close: func() {
		_ = gz.Close()
		closeInput()
	}}, nil
}

// openOutput returns a buffered writer for path, or for stdout when path
// is empty or "-". The cleanup flushes and reports the first error.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		bw := bufio.NewWriterSize(stdout, ioBufferSize)
		return bw, bw.Flush, nil
	}

	f, err := os.Create(path) //nolint:gosec // CLI tool needs to create user-specified files
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create output: %w", err)
	}
	bw := bufio.NewWriterSize(f, ioBufferSize)
	return bw, func() error {
		if err := bw.Flush(); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}, nil
}
