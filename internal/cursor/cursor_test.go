package cursor

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/htsio/internal/fasta"
	"github.com/vertti/htsio/internal/window"
)

type sliceDecoder struct {
	recs  []int
	err   error
	calls int
}

func (d *sliceDecoder) Next() (int, error) {
	d.calls++
	if len(d.recs) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		return 0, io.EOF
	}
	r := d.recs[0]
	d.recs = d.recs[1:]
	return r, nil
}

func TestCursor_Scan(t *testing.T) {
	t.Parallel()

	d := &sliceDecoder{recs: []int{1, 2, 3}}
	c := New[int](d)
	assert.Zero(t, d.calls, "nothing is read before the first Scan")

	var got []int
	for c.Scan() {
		got = append(got, c.Record())
	}
	require.NoError(t, c.Err())
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Zero(t, c.Record())

	assert.False(t, c.Scan(), "stays at end")
	assert.Equal(t, 4, d.calls)
}

func TestCursor_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := New[int](&sliceDecoder{recs: []int{7}, err: fmt.Errorf("decoding: %w", boom)})
	require.True(t, c.Scan())
	assert.Equal(t, 7, c.Record())
	assert.False(t, c.Scan())
	assert.ErrorIs(t, c.Err(), boom)
}

func TestAll(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		d       *sliceDecoder
		want    []int
		wantErr bool
	}{
		{"empty", &sliceDecoder{}, nil, false},
		{"records", &sliceDecoder{recs: []int{4, 5}}, []int{4, 5}, false},
		{"error after records", &sliceDecoder{recs: []int{4}, err: errors.New("bad")}, []int{4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				got  []int
				errs []error
			)
			for rec, err := range All[int](tt.d) {
				if err != nil {
					errs = append(errs, err)
					continue
				}
				got = append(got, rec)
			}
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Len(t, errs, 1)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestAll_Break(t *testing.T) {
	t.Parallel()

	d := &sliceDecoder{recs: []int{1, 2, 3, 4}}
	for rec := range All[int](d) {
		if rec == 2 {
			break
		}
	}
	assert.Equal(t, 2, d.calls)
}

func TestAll_FASTA(t *testing.T) {
	t.Parallel()

	r := fasta.NewReader(window.NewBytes([]byte(">a\nAC\n>b\nGT\nTT\n")))
	var ids, seqs []string
	for rec, err := range All[*fasta.Record](r) {
		require.NoError(t, err)
		ids = append(ids, rec.ID)
		seqs = append(seqs, string(rec.Seq))
	}
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, []string{"AC", "GTTT"}, seqs)
}
