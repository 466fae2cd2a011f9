package fasta

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/htsio/internal/errs"
	"github.com/vertti/htsio/internal/window"
)

func TestGenerateIndex(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	idx, err := GenerateIndex(&out, NewReader(window.NewBytes([]byte(threeRecords))))
	require.NoError(t, err)
	assert.Equal(t, "a\t4\t3\t4\t5\nb\t4\t11\t4\t5\nc\t8\t19\t4\t5\n", out.String())

	e, ok := idx.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, int64(19), e.Offset)
	_, ok = idx.Lookup("d")
	assert.False(t, ok)
}

func TestGenerateIndex_RaggedLines(t *testing.T) {
	t.Parallel()

	for _, data := range []string{
		">x\nACG\nACGT\n",
		">x\nACGT\nAC\nACGT\n",
		">x\nACGT\n\nACGT\n",
	} {
		_, err := GenerateIndex(&bytes.Buffer{}, NewReader(window.NewBytes([]byte(data))))
		assert.ErrorIs(t, err, errs.ErrMalformedRecord, "%q", data)
	}

	// A short last line and trailing blank lines are fine.
	_, err := GenerateIndex(&bytes.Buffer{}, NewReader(window.NewBytes([]byte(">x\nACGT\nAC\n\n>y\nA\n"))))
	assert.NoError(t, err)
}

func TestReadIndex_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, eol := range []string{"\n", "\r\n"} {
		data := multiFASTA(25, 11, eol)
		var fai bytes.Buffer
		want, err := GenerateIndex(&fai, NewReader(window.NewBytes([]byte(data))))
		require.NoError(t, err)

		idx, err := ReadIndex(&fai)
		require.NoError(t, err)
		assert.Equal(t, want.Entries, idx.Entries)

		// Every indexed region fetches the same bases as a full read.
		r := NewReader(window.NewBytes([]byte(data)))
		for _, e := range idx.Entries {
			require.NoError(t, r.SeekEntry(e))
			rec, err := r.Next()
			require.NoError(t, err)
			full := string(rec.Seq)

			got, err := r.Fetch(e, e.Length/3, e.Length)
			require.NoError(t, err)
			assert.Equal(t, full[e.Length/3:], string(got), "%s", e.Name)
		}
	}
}

func TestReadIndex_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"too few fields", "chr1\t10\t6\t10\n"},
		{"not a number", "chr1\tten\t6\t10\t11\n"},
		{"negative", "chr1\t10\t-6\t10\t11\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ReadIndex(strings.NewReader("ok\t1\t4\t1\t2\n" + tt.in))
			require.ErrorIs(t, err, errs.ErrMalformedRecord)
			var e *errs.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, int64(len("ok\t1\t4\t1\t2\n")), e.Offset)
		})
	}
}

func TestReadIndex_ExtraColumnsAndBlankLines(t *testing.T) {
	t.Parallel()

	idx, err := ReadIndex(strings.NewReader("r1\t4\t5\t4\t5\t12\n\nr2\t2\t15\t2\t3\n"))
	require.NoError(t, err)
	require.Len(t, idx.Entries, 2)
	assert.Equal(t, Entry{Name: "r2", Length: 2, Offset: 15, LineBases: 2, LineWidth: 3}, idx.Entries[1])
}

func TestParseRegion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Region
		wantErr bool
	}{
		{in: "chr1", want: Region{Name: "chr1", End: -1}},
		{in: "chr1:100", want: Region{Name: "chr1", Start: 99, End: -1}},
		{in: "chr1:1-10", want: Region{Name: "chr1", Start: 0, End: 10}},
		{in: "chr1:1,000-2,000", want: Region{Name: "chr1", Start: 999, End: 2000}},
		{in: "HLA:x", want: Region{Name: "HLA:x", End: -1}},
		{in: "chr1:0-5", wantErr: true},
		{in: "chr1:10-5", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRegion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegion_Resolve(t *testing.T) {
	t.Parallel()

	e := Entry{Length: 50}
	start, end := Region{Start: 10, End: -1}.Resolve(e)
	assert.Equal(t, [2]int64{10, 50}, [2]int64{start, end})
	start, end = Region{Start: 60, End: 100}.Resolve(e)
	assert.Equal(t, [2]int64{50, 50}, [2]int64{start, end})
}
