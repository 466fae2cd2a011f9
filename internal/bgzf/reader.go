package bgzf

import (
	"github.com/vertti/htsio/internal/window"
)

// Reader decompresses a BGZF stream one block at a time on the calling
// goroutine. It implements io.Reader over the decompressed bytes, so it can
// itself feed a window.Buffer.
type Reader struct {
	src   *window.Buffer
	codec *Codec

	block   []byte // decompressed scratch for reads smaller than a block
	pending []byte // unread tail of block
}

// NewReader returns a Reader decompressing the BGZF stream in src.
func NewReader(src *window.Buffer) *Reader {
	return &Reader{src: src, codec: newDecoder()}
}

// ReadBlock decompresses the next block into dst, which must hold the
// block's uncompressed size (MaxBlockSize always suffices). It returns
// io.EOF once the compressed stream is exhausted. An empty block returns
// 0 bytes and a nil error.
func (r *Reader) ReadBlock(dst []byte) (int, error) {
	off := r.src.Tell()
	raw, err := nextBlock(r.src)
	if err != nil {
		return 0, err
	}
	n, err := r.codec.Decompress(raw, dst)
	if err != nil {
		return 0, atOffset(err, off)
	}
	r.src.DropUntil(len(raw))
	return n, nil
}

// Read fills p with decompressed bytes. Reads of at least MaxBlockSize
// bytes decompress straight into p.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}
	for {
		if len(p) >= MaxBlockSize {
			n, err := r.ReadBlock(p)
			if err != nil || n > 0 {
				return n, err
			}
			continue
		}
		if r.block == nil {
			r.block = make([]byte, MaxBlockSize)
		}
		n, err := r.ReadBlock(r.block)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		k := copy(p, r.block[:n])
		r.pending = r.block[k:n]
		return k, nil
	}
}

// Offset returns the compressed offset of the next unread block.
func (r *Reader) Offset() int64 {
	return r.src.Tell()
}
