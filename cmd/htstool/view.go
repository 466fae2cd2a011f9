package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"

	"github.com/vertti/htsio/internal/bam"
	"github.com/vertti/htsio/internal/bcf"
	"github.com/vertti/htsio/internal/cursor"
	"github.com/vertti/htsio/internal/fasta"
	"github.com/vertti/htsio/internal/htsfile"
)

const fastaLineWidth = 60

func newViewCmd() *cobra.Command {
	var (
		ff     fileFlags
		header bool
	)
	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Print records as text",
		Long: `Print the records of a BAM, BCF or FASTA file as tab-separated text:
SAM columns for BAM, VCF columns for BCF, and wrapped FASTA for FASTA.

Example:
  htstool view -H -w 4 calls.bcf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := ff.options(cmd)
			if err != nil {
				return err
			}
			f, err := htsfile.Open(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck // read-only

			out, flush, err := openOutput("", cmd.OutOrStdout())
			if err != nil {
				return err
			}
			var n int
			switch f.Format {
			case htsfile.FormatBAM:
				n, err = viewBAM(out, f, header)
			case htsfile.FormatBCF:
				n, err = viewBCF(out, f, header)
			case htsfile.FormatFASTA:
				n, err = viewFASTA(out, f)
			default:
				err = fmt.Errorf("%s has no records to view; use cat", args[0])
			}
			if err != nil {
				_ = flush()
				return err
			}
			if log.At(log.Debug) {
				log.Debug.Printf("view: %d records from %s", n, args[0])
			}
			return flush()
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVarP(&header, "header", "H", false, "print the header before the records")
	return cmd
}

func viewBAM(w io.Writer, f *htsfile.File, header bool) (int, error) {
	r, err := f.BAM()
	if err != nil {
		return 0, err
	}
	h := r.Header()
	if header {
		if _, err := io.WriteString(w, h.Text); err != nil {
			return 0, err
		}
	}
	var (
		line []byte
		n    int
	)
	for rec, err := range cursor.All[*bam.Record](r) {
		if err != nil {
			return n, err
		}
		line = appendSAM(line[:0], h, rec)
		if _, err := w.Write(line); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// appendSAM renders the eleven mandatory SAM columns of rec.
func appendSAM(dst []byte, h *bam.Header, rec *bam.Record) []byte {
	dst = append(dst, rec.Name...)
	dst = append(dst, '\t')
	dst = strconv.AppendUint(dst, uint64(rec.Flags), 10)
	dst = append(dst, '\t')
	dst = append(dst, h.RefName(rec.RefID)...)
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(rec.Pos)+1, 10)
	dst = append(dst, '\t')
	dst = strconv.AppendUint(dst, uint64(rec.MapQ), 10)
	dst = append(dst, '\t')
	dst = append(dst, rec.Cigar.String()...)
	dst = append(dst, '\t')
	if rec.NextRefID >= 0 && rec.NextRefID == rec.RefID {
		dst = append(dst, '=')
	} else {
		dst = append(dst, h.RefName(rec.NextRefID)...)
	}
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(rec.NextPos)+1, 10)
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(rec.TLen), 10)
	dst = append(dst, '\t')
	if rec.Seq.Len() == 0 {
		dst = append(dst, '*')
	} else {
		dst = rec.Seq.AppendTo(dst)
	}
	dst = append(dst, '\t')
	dst = bam.AppendQualText(dst, rec.Qual)
	return append(dst, '\n')
}

func viewBCF(w io.Writer, f *htsfile.File, header bool) (int, error) {
	r, err := f.BCF()
	if err != nil {
		return 0, err
	}
	h := r.Header()
	if header {
		if _, err := io.WriteString(w, h.Text); err != nil {
			return 0, err
		}
	}
	var (
		line []byte
		n    int
	)
	c := cursor.New[*bcf.Record](r)
	for c.Scan() {
		if line, err = appendVCF(line[:0], h, c.Record()); err != nil {
			return n, err
		}
		if _, err := w.Write(line); err != nil {
			return n, err
		}
		n++
	}
	return n, c.Err()
}

// appendVCF renders rec as a VCF data line.
func appendVCF(dst []byte, h *bcf.Header, rec *bcf.Record) ([]byte, error) {
	alleles, err := rec.Alleles()
	if err != nil {
		return dst, err
	}
	dst = append(dst, h.Contig(rec.ChromID)...)
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(rec.Pos)+1, 10)
	dst = append(dst, '\t')
	dst = appendOrDot(dst, string(rec.ID))
	dst = append(dst, '\t')
	if len(alleles) > 0 {
		dst = append(dst, alleles[0]...)
	} else {
		dst = append(dst, '.')
	}
	dst = append(dst, '\t')
	if len(alleles) > 1 {
		for i, a := range alleles[1:] {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = append(dst, a...)
		}
	} else {
		dst = append(dst, '.')
	}
	dst = append(dst, '\t')
	if rec.HasQual {
		dst = strconv.AppendFloat(dst, float64(rec.Qual), 'g', -1, 32)
	} else {
		dst = append(dst, '.')
	}
	dst = append(dst, '\t')
	filters := rec.Filters()
	if len(filters) == 0 {
		dst = append(dst, '.')
	}
	for i, id := range filters {
		if i > 0 {
			dst = append(dst, ';')
		}
		dst = append(dst, h.Key(id)...)
	}

	dst = append(dst, '\t')
	start := len(dst)
	for field, err := range rec.InfoFields() {
		if err != nil {
			return dst, err
		}
		if len(dst) > start {
			dst = append(dst, ';')
		}
		dst = append(dst, h.Key(field.Key)...)
		if !field.Value.IsFlag() {
			dst = append(dst, '=')
			dst = appendValue(dst, field.Value)
		}
	}
	if len(dst) == start {
		dst = append(dst, '.')
	}

	if rec.NFormat > 0 {
		var fields []bcf.FormatField
		for field, err := range rec.FormatFields() {
			if err != nil {
				return dst, err
			}
			fields = append(fields, field)
		}
		dst = append(dst, '\t')
		for i, field := range fields {
			if i > 0 {
				dst = append(dst, ':')
			}
			dst = append(dst, h.Key(field.Key)...)
		}
		for s := range int(rec.NSample) {
			dst = append(dst, '\t')
			for i, field := range fields {
				if i > 0 {
					dst = append(dst, ':')
				}
				v := field.Sample(s)
				if h.Key(field.Key) == "GT" {
					dst = appendGenotype(dst, v)
				} else {
					dst = appendValue(dst, v)
				}
			}
		}
	}
	return append(dst, '\n'), nil
}

func appendOrDot(dst []byte, s string) []byte {
	if s == "" {
		return append(dst, '.')
	}
	return append(dst, s...)
}

// appendValue renders a typed value the way VCF text does: comma-separated
// elements, "." for missing ones, end-of-vector padding dropped.
func appendValue(dst []byte, v bcf.Value) []byte {
	switch v.Type {
	case bcf.TypeChar:
		return appendOrDot(dst, v.String())
	case bcf.TypeInt8, bcf.TypeInt16, bcf.TypeInt32, bcf.TypeFloat:
	default:
		return append(dst, '.')
	}
	start := len(dst)
	for i := range v.Len {
		if v.EndOfVector(i) {
			break
		}
		if len(dst) > start {
			dst = append(dst, ',')
		}
		if v.Type == bcf.TypeFloat {
			x, ok := v.Float(i)
			if !ok {
				dst = append(dst, '.')
				continue
			}
			dst = strconv.AppendFloat(dst, float64(x), 'g', -1, 32)
			continue
		}
		x, ok := v.Int(i)
		if !ok {
			dst = append(dst, '.')
			continue
		}
		dst = strconv.AppendInt(dst, int64(x), 10)
	}
	if len(dst) == start {
		dst = append(dst, '.')
	}
	return dst
}

// appendGenotype decodes GT values: allele index plus one, shifted left,
// with the low bit set for a phased call.
func appendGenotype(dst []byte, v bcf.Value) []byte {
	start := len(dst)
	for i := range v.Len {
		if v.EndOfVector(i) {
			break
		}
		x, ok := v.Int(i)
		if i > 0 {
			if ok && x&1 == 1 {
				dst = append(dst, '|')
			} else {
				dst = append(dst, '/')
			}
		}
		if !ok || x>>1 == 0 {
			dst = append(dst, '.')
			continue
		}
		dst = strconv.AppendInt(dst, int64(x>>1-1), 10)
	}
	if len(dst) == start {
		dst = append(dst, '.')
	}
	return dst
}

func viewFASTA(w io.Writer, f *htsfile.File) (int, error) {
	r, err := f.FASTA()
	if err != nil {
		return 0, err
	}
	n := 0
	for rec, err := range cursor.All[*fasta.Record](r) {
		if err != nil {
			return n, err
		}
		name := rec.ID
		if rec.Desc != "" {
			name += " " + rec.Desc
		}
		if err := writeFASTA(w, name, rec.Seq, fastaLineWidth); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// writeFASTA writes one record with seq wrapped at width bases per line.
func writeFASTA(w io.Writer, name string, seq []byte, width int) error {
	if _, err := fmt.Fprintf(w, ">%s\n", name); err != nil {
		return err
	}
	for len(seq) > 0 {
		n := min(width, len(seq))
		if _, err := w.Write(seq[:n]); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		seq = seq[n:]
	}
	return nil
}
