package bgzf

import (
	"errors"
	"fmt"
	"io"
)

// Writer compresses a byte stream into BGZF blocks. Input is cut into
// chunks of the configured block size, each compressed into one block.
// Close flushes the last partial chunk and appends the terminator.
type Writer struct {
	w         io.Writer
	codec     *Codec
	blockSize int

	pending    []byte // uncompressed bytes of the current block
	compressed []byte
	coffset    uint64 // file offset of the current block
	closed     bool
}

// NewWriter returns a Writer compressing at level with blocks of
// MaxUncompressedChunk bytes.
func NewWriter(w io.Writer, level int) (*Writer, error) {
	return NewWriterSize(w, level, MaxUncompressedChunk)
}

// NewWriterSize is like NewWriter with an explicit uncompressed block size
// in (0, MaxUncompressedChunk].
func NewWriterSize(w io.Writer, level, blockSize int) (*Writer, error) {
	if blockSize <= 0 || blockSize > MaxUncompressedChunk {
		return nil, fmt.Errorf("bgzf: block size %d out of range (0, %d]", blockSize, MaxUncompressedChunk)
	}
	c, err := NewCodec(level)
	if err != nil {
		return nil, err
	}
	return &Writer{
		w:          w,
		codec:      c,
		blockSize:  blockSize,
		pending:    make([]byte, 0, blockSize),
		compressed: make([]byte, 0, MaxBlockSize),
	}, nil
}

// Write buffers p, emitting a block each time a full chunk accumulates.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("bgzf: write after close")
	}
	written := 0
	for len(p) > 0 {
		k := min(len(p), w.blockSize-len(w.pending))
		w.pending = append(w.pending, p[:k]...)
		p = p[k:]
		written += k
		if len(w.pending) == w.blockSize {
			if err := w.emit(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush compresses any buffered bytes into a block, so the next byte
// written starts a new block.
func (w *Writer) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	return w.emit()
}

// Close flushes and writes the terminator block. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true
	if _, err := w.w.Write(Terminator); err != nil {
		return fmt.Errorf("writing terminator: %w", err)
	}
	w.coffset += uint64(len(Terminator))
	return nil
}

// VOffset returns the virtual offset of the next byte to be written: the
// current block's file offset shifted left 16, ORed with the position
// inside the block.
func (w *Writer) VOffset() uint64 {
	return w.coffset<<16 | uint64(len(w.pending))
}

func (w *Writer) emit() error {
	var err error
	w.compressed, err = w.codec.Compress(w.compressed[:0], w.pending)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(w.compressed); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	w.coffset += uint64(len(w.compressed))
	w.pending = w.pending[:0]
	return nil
}
