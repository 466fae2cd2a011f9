package bam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCigar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		ops     []CigarOp
		refLen  int
		wantErr bool
	}{
		{in: "*", ops: nil},
		{in: "100M", ops: []CigarOp{NewCigarOp(CigarMatch, 100)}, refLen: 100},
		{
			in: "5S10M2I3D1N4=1X6H",
			ops: []CigarOp{
				NewCigarOp(CigarSoftClipped, 5),
				NewCigarOp(CigarMatch, 10),
				NewCigarOp(CigarInsertion, 2),
				NewCigarOp(CigarDeletion, 3),
				NewCigarOp(CigarSkipped, 1),
				NewCigarOp(CigarEqual, 4),
				NewCigarOp(CigarMismatch, 1),
				NewCigarOp(CigarHardClipped, 6),
			},
			refLen: 19,
		},
		{in: "3P", ops: []CigarOp{NewCigarOp(CigarPadded, 3)}},
		{in: "M", wantErr: true},
		{in: "10", wantErr: true},
		{in: "10Q", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			c, err := EncodeCigar(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, len(tt.ops), c.Len())
			for i, op := range tt.ops {
				assert.Equal(t, op, c.At(i))
			}
			assert.Equal(t, tt.refLen, c.ReferenceLen())
			assert.Equal(t, tt.in, c.String())
		})
	}
}

func TestCigarOp_Fields(t *testing.T) {
	t.Parallel()

	// 35 << 4 | 1 is "35I".
	op := CigarOp(35<<4 | 1)
	assert.Equal(t, CigarInsertion, op.Type())
	assert.Equal(t, 35, op.Len())
	assert.Equal(t, "35I", op.String())
	assert.Equal(t, "?", CigarOpType(12).String())
}
