package bam

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	biogo "github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/htsio/internal/bgzf"
	"github.com/vertti/htsio/internal/errs"
	"github.com/vertti/htsio/internal/window"
)

var testHeader = &Header{
	Text: "@HD\tVN:1.6\tSO:coordinate\n@SQ\tSN:chr1\tLN:5000\n@SQ\tSN:chr2\tLN:300\n",
	Refs: []Reference{{Name: "chr1", Len: 5000}, {Name: "chr2", Len: 300}},
}

func mustCigar(t *testing.T, s string) Cigar {
	t.Helper()
	c, err := EncodeCigar(s)
	require.NoError(t, err)
	return c
}

func testRecords(t *testing.T) []*Record {
	t.Helper()
	return []*Record{
		{
			RefID: 0, Pos: 99, MapQ: 60, Flags: Paired | Read1,
			NextRefID: 0, NextPos: 199, TLen: 150,
			Name: []byte("read/1"), Cigar: mustCigar(t, "4M1I3M"),
			Seq: EncodeSeq("ACGTNACG"), Qual: ParseQualText("IIIII###"),
			Aux: []byte("NMC\x01"),
		},
		{
			RefID: 1, Pos: 0, MapQ: 0, Flags: Reverse,
			NextRefID: -1, NextPos: -1,
			Name: []byte("r2"), Cigar: mustCigar(t, "3S2M"),
			Seq: EncodeSeq("TTGCA"), Qual: ParseQualText("+++++"),
		},
		{
			RefID: -1, Pos: -1, Flags: Unmapped,
			NextRefID: -1, NextPos: -1,
			Name: []byte("unmapped"), Seq: EncodeSeq("G"),
		},
	}
}

// bamFile writes header and records as a BGZF-compressed BAM stream.
func bamFile(t *testing.T, h *Header, recs []*Record) []byte {
	t.Helper()
	var out bytes.Buffer
	bg, err := bgzf.NewWriter(&out, bgzf.DefaultLevel)
	require.NoError(t, err)
	w, err := NewWriter(bg, h)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, bg.Close())
	return out.Bytes()
}

func openBAM(data []byte) (*Reader, error) {
	return NewReader(window.New(bgzf.NewReader(window.NewBytes(data))))
}

func readAll(t *testing.T, r *Reader) []*Record {
	t.Helper()
	var out []*Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec.Clone())
	}
}

func TestReader_RoundTrip(t *testing.T) {
	t.Parallel()

	recs := testRecords(t)
	r, err := openBAM(bamFile(t, testHeader, recs))
	require.NoError(t, err)
	assert.Equal(t, testHeader, r.Header())

	got := readAll(t, r)
	require.Len(t, got, len(recs))
	for i, want := range recs {
		g := got[i]
		assert.Equal(t, want.RefID, g.RefID, "record %d", i)
		assert.Equal(t, want.Pos, g.Pos)
		assert.Equal(t, want.MapQ, g.MapQ)
		assert.Equal(t, want.Flags, g.Flags)
		assert.Equal(t, want.NextRefID, g.NextRefID)
		assert.Equal(t, want.NextPos, g.NextPos)
		assert.Equal(t, want.TLen, g.TLen)
		assert.Equal(t, string(want.Name), string(g.Name))
		assert.Equal(t, want.Cigar.String(), g.Cigar.String())
		assert.Equal(t, want.Seq.Packed(), g.Seq.Packed())
		assert.Equal(t, want.Seq.String(), g.Seq.String())
		assert.Equal(t, string(want.Aux), string(g.Aux))
	}
	assert.Equal(t, "IIIII###", string(AppendQualText(nil, got[0].Qual)))
	assert.Equal(t, "*", string(AppendQualText(nil, got[2].Qual)))

	// Exhausted stays exhausted.
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_ManyRecordsAcrossBlocks(t *testing.T) {
	t.Parallel()

	var recs []*Record
	for i := range 5000 {
		recs = append(recs, &Record{
			RefID: int32(i % 2), Pos: int32(i), MapQ: uint8(i % 61),
			NextRefID: -1, NextPos: -1,
			Name:  []byte("read_" + string(rune('a'+i%26))),
			Cigar: mustCigar(t, "20M"),
			Seq:   EncodeSeq("ACGTACGTACGTACGTACGT"[i%4:] + "ACGT"[:i%4]),
		})
	}
	r, err := openBAM(bamFile(t, testHeader, recs))
	require.NoError(t, err)

	n := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, int32(n), rec.Pos)
		assert.Equal(t, recs[n].Seq.String(), rec.Seq.String())
		n++
	}
	assert.Equal(t, len(recs), n)
}

func TestReader_HeaderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"bad magic", []byte("BAM\x02\x00\x00\x00\x00\x00\x00\x00\x00"), errs.ErrMalformedHeader},
		{"empty", nil, errs.ErrTruncatedInput},
		{"text cut short", []byte("BAM\x01\x10\x00\x00\x00@HD"), errs.ErrTruncatedInput},
		{"reference cut short", append([]byte("BAM\x01\x00\x00\x00\x00\x01\x00\x00\x00\x05\x00\x00\x00"), "chr"...), errs.ErrTruncatedInput},
		{"zero name length", []byte("BAM\x01\x00\x00\x00\x00\x01\x00\x00\x00\x00\x00\x00\x00"), errs.ErrMalformedHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewReader(window.NewBytes(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReader_TruncatedRecord(t *testing.T) {
	t.Parallel()

	var raw []byte
	raw = appendHeader(raw, testHeader)
	headerLen := len(raw)
	raw, err := appendRecord(raw, testRecords(t)[0])
	require.NoError(t, err)

	for _, cut := range []int{2, 10, len(raw) - headerLen - 1} {
		r, err := NewReader(window.NewBytes(raw[:headerLen+cut]))
		require.NoError(t, err)

		_, err = r.Next()
		require.ErrorIs(t, err, errs.ErrTruncatedInput, "cut at %d", cut)
		var e *errs.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, int64(headerLen), e.Offset)

		// Failure is sticky.
		_, err2 := r.Next()
		assert.Equal(t, err, err2)
	}
}

func TestReader_InconsistentRecord(t *testing.T) {
	t.Parallel()

	var raw []byte
	raw = appendHeader(raw, testHeader)
	headerLen := len(raw)
	raw, err := appendRecord(raw, testRecords(t)[1])
	require.NoError(t, err)
	// Claim more cigar ops than the record holds.
	binary.LittleEndian.PutUint16(raw[headerLen+4+12:], 500)

	r, err := NewReader(window.NewBytes(raw))
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, errs.ErrMalformedRecord)
}

func TestReader_Tell(t *testing.T) {
	t.Parallel()

	var raw []byte
	raw = appendHeader(raw, testHeader)
	first := len(raw)
	raw, err := appendRecord(raw, testRecords(t)[0])
	require.NoError(t, err)
	second := len(raw)
	raw, err = appendRecord(raw, testRecords(t)[1])
	require.NoError(t, err)

	r, err := NewReader(window.NewBytes(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(first), r.Tell())
	_, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(second), r.Tell())
}

func TestReader_ReadsBiogoOutput(t *testing.T) {
	t.Parallel()

	chr1, err := sam.NewReference("chr1", "", "", 5000, nil, nil)
	require.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 300, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)

	type row struct {
		name  string
		ref   *sam.Reference
		pos   int
		flags sam.Flags
		cigar string
		seq   string
	}
	rows := []row{
		{"a", chr1, 10, sam.Paired, "5M", "ACGTA"},
		{"bb", chr2, 250, sam.Reverse, "2S3M1D2M", "NNGATTA"},
		{"ccc", chr1, 4000, 0, "1M", "T"},
	}

	var buf bytes.Buffer
	bw, err := biogo.NewWriter(&buf, h, 1)
	require.NoError(t, err)
	for _, row := range rows {
		cigar, err := sam.ParseCigar([]byte(row.cigar))
		require.NoError(t, err)
		rec := &sam.Record{
			Name:    row.name,
			Ref:     row.ref,
			Pos:     row.pos,
			MapQ:    30,
			Flags:   row.flags,
			Cigar:   cigar,
			Seq:     sam.NewSeq([]byte(row.seq)),
			Qual:    bytes.Repeat([]byte{30}, len(row.seq)),
			MatePos: -1,
		}
		require.NoError(t, bw.Write(rec))
	}
	require.NoError(t, bw.Close())

	r, err := openBAM(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, r.Header().Refs, 2)
	assert.Equal(t, Reference{Name: "chr2", Len: 300}, r.Header().Refs[1])

	got := readAll(t, r)
	require.Len(t, got, len(rows))
	for i, row := range rows {
		assert.Equal(t, row.name, string(got[i].Name))
		assert.Equal(t, row.ref.Name(), r.Header().RefName(got[i].RefID))
		assert.Equal(t, int32(row.pos), got[i].Pos)
		assert.Equal(t, Flags(row.flags), got[i].Flags)
		assert.Equal(t, row.cigar, got[i].Cigar.String())
		assert.Equal(t, row.seq, got[i].Seq.String())
		assert.Equal(t, uint8(30), got[i].MapQ)
	}
}

func TestWriter_ReadableByBiogo(t *testing.T) {
	t.Parallel()

	recs := testRecords(t)[:2]
	br, err := biogo.NewReader(bytes.NewReader(bamFile(t, testHeader, recs)), 1)
	require.NoError(t, err)
	defer br.Close() //nolint:errcheck // test cleanup

	require.Len(t, br.Header().Refs(), 2)
	for _, want := range recs {
		rec, err := br.Read()
		require.NoError(t, err)
		assert.Equal(t, string(want.Name), rec.Name)
		assert.Equal(t, int(want.Pos), rec.Pos)
		assert.Equal(t, want.Cigar.String(), rec.Cigar.String())
		assert.Equal(t, want.Seq.String(), string(rec.Seq.Expand()))
	}
	_, err = br.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReg2Bin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(4680), Reg2Bin(-1, 0))
	assert.Equal(t, uint16(4681), Reg2Bin(0, 100))
	assert.Equal(t, uint16(585), Reg2Bin(0, 1<<15))
}
