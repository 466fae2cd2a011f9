package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"

	"github.com/vertti/htsio/internal/bgzf"
)

type bgzipConfig struct {
	level      int
	outputFile string
	toStdout   bool
}

func newBgzipCmd() *cobra.Command {
	var cfg bgzipConfig
	cmd := &cobra.Command{
		Use:   "bgzip [file]",
		Short: "Compress a file to BGZF",
		Long: `Compress a file, or stdin, to BGZF. Gzip input, detected by extension or
magic bytes, is decompressed first, so plain .gz files are converted. Input
that is already BGZF is copied unchanged.

Without -o or -c the output is written next to the input with a .gz suffix.

Examples:
  htstool bgzip calls.vcf                 Write calls.vcf.gz
  htstool bgzip -l 9 -o out.gz in.txt     Best compression
  cat reads.fq | htstool bgzip > reads.fq.gz`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return bgzip(cmd, input, cfg)
		},
	}
	cmd.Flags().IntVarP(&cfg.level, "level", "l", bgzf.DefaultLevel, "compression level, -1 to 9")
	cmd.Flags().StringVarP(&cfg.outputFile, "output", "o", "", "output file")
	cmd.Flags().BoolVarP(&cfg.toStdout, "stdout", "c", false, "write to stdout")
	return cmd
}

func bgzip(cmd *cobra.Command, input string, cfg bgzipConfig) error {
	in, err := openInput(input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer in.close()

	output := cfg.outputFile
	switch {
	case cfg.toStdout:
		output = "-"
	case output == "" && input != "-":
		output = strings.TrimSuffix(input, ".gz") + ".gz"
		if output == input {
			return fmt.Errorf("refusing to overwrite %s; use -o", input)
		}
	}
	out, closeOutput, err := openOutput(output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if in.kind == inputBGZF {
		n, err := io.Copy(out, in.r)
		if err != nil {
			_ = closeOutput()
			return fmt.Errorf("copying %s: %w", input, err)
		}
		if err := closeOutput(); err != nil {
			return err
		}
		log.Printf("bgzip: %s is already BGZF; copied %d bytes", input, n)
		return nil
	}

	bw, err := bgzf.NewWriter(out, cfg.level)
	if err != nil {
		_ = closeOutput()
		return err
	}
	n, err := io.Copy(bw, in.r)
	if err != nil {
		_ = closeOutput()
		return fmt.Errorf("compressing %s: %w", input, err)
	}
	if err := bw.Close(); err != nil {
		_ = closeOutput()
		return err
	}
	if err := closeOutput(); err != nil {
		return err
	}
	if output != "-" && output != "" {
		log.Printf("bgzip: %s: %d bytes compressed to %s", input, n, output)
	}
	return nil
}
