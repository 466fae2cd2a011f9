package main

import (
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"

	"github.com/vertti/htsio/internal/htsfile"
)

func newCatCmd() *cobra.Command {
	var ff fileFlags
	cmd := &cobra.Command{
		Use:   "cat <file>",
		Short: "Decompress a BGZF file to stdout",
		Long: `Decompress any BGZF-compressed file (.bam, .bcf, .gz, .bgz) to stdout.

Example:
  htstool cat -w 8 sample.bam > sample.ubam`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := ff.options(cmd)
			if err != nil {
				return err
			}
			if args[0] == "-" && opts.Format == htsfile.FormatUnknown {
				opts.Format = htsfile.FormatBGZF
			}
			f, err := htsfile.Open(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck // read-only; errors surface through WriteTo
			if !f.Format.Compressed() {
				return fmt.Errorf("%s is not BGZF-compressed", args[0])
			}

			out, flush, err := openOutput("", cmd.OutOrStdout())
			if err != nil {
				return err
			}
			n, err := f.Buffer().WriteTo(out)
			if err != nil {
				return fmt.Errorf("decompressing %s: %w", args[0], err)
			}
			if log.At(log.Debug) {
				log.Debug.Printf("cat: %d bytes from %s", n, args[0])
			}
			return flush()
		},
	}
	ff.register(cmd)
	return cmd
}
