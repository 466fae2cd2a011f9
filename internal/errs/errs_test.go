package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsKindSentinel(t *testing.T) {
	t.Parallel()

	err := New(TruncatedInput, "bam record", 128, "need %d bytes, have %d", 40, 12)
	wrapped := fmt.Errorf("reading alignments: %w", err)

	assert.ErrorIs(t, wrapped, ErrTruncatedInput)
	assert.NotErrorIs(t, wrapped, ErrChecksumMismatch)
	assert.Equal(t, TruncatedInput, KindOf(wrapped))
	assert.Equal(t, "bam record: truncated input at offset 128: need 40 bytes, have 12", err.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	t.Parallel()

	err := Wrap(TruncatedInput, "bgzf block", 0, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestErrorWithoutOffset(t *testing.T) {
	t.Parallel()

	err := New(UnknownExtension, "open reads.xyz", -1, "")
	assert.Equal(t, "open reads.xyz: unknown extension", err.Error())
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}

func TestKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want string
	}{
		{MalformedHeader, "malformed header"},
		{ChecksumMismatch, "checksum mismatch"},
		{UnsupportedEncoding, "unsupported encoding"},
		{MalformedRecord, "malformed record"},
		{Kind(99), "kind(99)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}
