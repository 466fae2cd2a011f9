package main

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"

	"github.com/vertti/htsio/internal/htsfile"
)

func newChecksumCmd() *cobra.Command {
	var ff fileFlags
	cmd := &cobra.Command{
		Use:   "checksum <file>...",
		Short: "Print the xxhash64 of each file's decompressed bytes",
		Long: `Hash the decompressed contents of BGZF files, or the raw bytes of FASTA
files, with xxhash64. Two files with the same payload hash the same no
matter how they were blocked or compressed.

Example:
  htstool checksum -w 8 a.bam b.bam`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := ff.options(cmd)
			if err != nil {
				return err
			}
			for _, path := range args {
				sum, n, err := checksum(cmd, path, opts)
				if err != nil {
					return err
				}
				if log.At(log.Debug) {
					log.Debug.Printf("checksum: %s: %d bytes", path, n)
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%016x  %s\n", sum, path); err != nil {
					return err
				}
			}
			return nil
		},
	}
	ff.register(cmd)
	return cmd
}

func checksum(cmd *cobra.Command, path string, opts htsfile.Options) (uint64, int64, error) {
	if path == "-" && opts.Format == htsfile.FormatUnknown {
		opts.Format = htsfile.FormatBGZF
	}
	f, err := htsfile.Open(cmd.Context(), path, opts)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close() //nolint:errcheck // read-only

	h := xxhash.New()
	n, err := f.Buffer().WriteTo(h)
	if err != nil {
		return 0, n, fmt.Errorf("hashing %s: %w", path, err)
	}
	return h.Sum64(), n, nil
}
