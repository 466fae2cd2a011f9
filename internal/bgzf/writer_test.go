package bgzf

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/htsio/internal/window"
)

func TestWriter_EndsWithTerminator(t *testing.T) {
	t.Parallel()

	for _, length := range []int{0, 1, 100, 65279, 65280, 65281, 500000} {
		stream := bgzfStream(t, randomBytes(int64(length), length), MaxUncompressedChunk)
		assert.True(t, bytes.HasSuffix(stream, Terminator), "length %d", length)
	}
}

func TestWriter_BlockBoundaries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriterSize(&buf, flate.BestSpeed, 10)
	require.NoError(t, err)

	// Split writes must still produce full blocks.
	for _, s := range []string{"abc", "defghij", "klmnopqrstu", "v"} {
		_, err := w.Write([]byte(s))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r := NewReader(window.NewBytes(buf.Bytes()))
	dst := make([]byte, MaxBlockSize)
	var blocks []string
	for {
		n, err := r.ReadBlock(dst)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		blocks = append(blocks, string(dst[:n]))
	}
	assert.Equal(t, []string{"abcdefghij", "klmnopqrst", "uv", ""}, blocks)
}

func TestWriter_VOffset(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriterSize(&buf, flate.BestSpeed, 5)
	require.NoError(t, err)

	_, err = w.Write([]byte("ABCD"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), w.VOffset())

	// Completing the block moves the file offset and resets the in-block offset.
	_, err = w.Write([]byte("E"))
	require.NoError(t, err)
	v := w.VOffset()
	assert.Zero(t, v&0xffff)
	assert.Equal(t, uint64(buf.Len()), v>>16)

	_, err = w.Write([]byte("F"))
	require.NoError(t, err)
	assert.Equal(t, v|1, w.VOffset())

	require.NoError(t, w.Flush())
	assert.Equal(t, uint64(buf.Len())<<16, w.VOffset())
	require.NoError(t, w.Close())
}

func TestWriter_Options(t *testing.T) {
	t.Parallel()

	_, err := NewWriterSize(io.Discard, DefaultLevel, 0)
	assert.Error(t, err)
	_, err = NewWriterSize(io.Discard, DefaultLevel, MaxUncompressedChunk+1)
	assert.Error(t, err)
	_, err = NewWriter(io.Discard, 99)
	assert.Error(t, err)
}

func TestWriter_WriteAfterClose(t *testing.T) {
	t.Parallel()

	w, err := NewWriter(io.Discard, DefaultLevel)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")
	_, err = w.Write([]byte("x"))
	assert.Error(t, err)
}
