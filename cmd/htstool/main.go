// htstool reads and writes BGZF, BAM, BCF and FASTA files.
package main

import (
	"os"

	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"
)

var version = "dev"

const (
	exitSuccess = 0
	exitError   = 1
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log.SetFlags(0)
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		log.Error.Printf("htstool: %v", err)
		return exitError
	}
	return exitSuccess
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "htstool",
		Short: "Genomics file I/O tools",
		Long: `htstool decompresses, inspects and indexes BGZF-based genomics files.

The format is chosen from the file extension: .bam, .bcf, .fa/.fasta/.fna,
and .gz/.bgz/.bgzf for raw BGZF streams. Use - to read standard input.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCatCmd(),
		newViewCmd(),
		newBgzipCmd(),
		newFaidxCmd(),
		newChecksumCmd(),
	)
	return root
}
