package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"

	"github.com/vertti/htsio/internal/fasta"
	"github.com/vertti/htsio/internal/htsfile"
)

func newFaidxCmd() *cobra.Command {
	var mmap bool
	cmd := &cobra.Command{
		Use:   "faidx <ref.fa> [region...]",
		Short: "Index a FASTA file or fetch regions from it",
		Long: `Without regions, write <ref.fa>.fai. With regions, print each one as FASTA,
building the index first if it is missing.

Regions are name, name:start or name:start-end, 1-based and inclusive.

Example:
  htstool faidx ref.fa chr1:10,000-10,200 chrM`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, regions := args[0], args[1:]
			if path == "-" {
				return errors.New("faidx needs a seekable file, not stdin")
			}
			f, err := htsfile.Open(cmd.Context(), path, htsfile.Options{Mmap: mmap, Format: htsfile.FormatFASTA})
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck // read-only
			r, err := f.FASTA()
			if err != nil {
				return err
			}

			idx, err := loadIndex(path, r, len(regions) == 0)
			if err != nil {
				return err
			}
			if len(regions) == 0 {
				return nil
			}

			out, flush, err := openOutput("", cmd.OutOrStdout())
			if err != nil {
				return err
			}
			for _, arg := range regions {
				if err := fetchRegion(out, r, idx, arg); err != nil {
					_ = flush()
					return err
				}
			}
			return flush()
		},
	}
	cmd.Flags().BoolVar(&mmap, "mmap", false, "memory-map the FASTA file")
	return cmd
}

// loadIndex reads path.fai, or builds and writes it when it is missing or
// rebuild is set.
func loadIndex(path string, r *fasta.Reader, rebuild bool) (*fasta.Index, error) {
	faiPath := path + ".fai"
	if !rebuild {
		fai, err := os.Open(faiPath) //nolint:gosec // index next to a user-specified file
		switch {
		case err == nil:
			defer fai.Close() //nolint:errcheck // read-only
			return fasta.ReadIndex(fai)
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	out, closeOutput, err := openOutput(faiPath, nil)
	if err != nil {
		return nil, err
	}
	idx, err := fasta.GenerateIndex(out, r)
	if err != nil {
		_ = closeOutput()
		_ = os.Remove(faiPath)
		return nil, fmt.Errorf("indexing %s: %w", path, err)
	}
	if err := closeOutput(); err != nil {
		return nil, err
	}
	log.Printf("faidx: indexed %d sequences in %s", len(idx.Entries), faiPath)
	return idx, nil
}

func fetchRegion(out io.Writer, r *fasta.Reader, idx *fasta.Index, arg string) error {
	reg, err := fasta.ParseRegion(arg)
	if err != nil {
		return err
	}
	e, ok := idx.Lookup(reg.Name)
	if !ok {
		return fmt.Errorf("sequence %q not in index", reg.Name)
	}
	start, end := reg.Resolve(e)
	seq, err := r.Fetch(e, start, end)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", arg, err)
	}
	return writeFASTA(out, arg, seq, fastaLineWidth)
}
