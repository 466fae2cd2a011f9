// Package window provides the sliding byte window shared by every format
// reader. A Buffer pulls bytes from a source on demand and hands out
// zero-copy views into its live region.
//
// Offsets passed to and returned from Buffer methods are relative to the
// current front of the window; Tell reports the front's absolute position
// in the source.
//
// A view returned by View or Read keeps its bytes until a DropUntil moves
// the front past the end of the view or Seek is called. The buffer never
// rewrites live bytes in place: a full window copies them into a fresh
// array.
package window

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// DefaultSize is the initial capacity of a heap-backed window. It holds
	// at least one full decompressed BGZF block.
	DefaultSize = 1 << 17

	// ReleaseThreshold is how far the front of a memory-mapped window must
	// move past already released pages before more pages are released.
	ReleaseThreshold = 1 << 20

	maxEmptyReads = 100
)

// ErrNotSeekable is returned by Seek when the source cannot seek.
var ErrNotSeekable = errors.New("window: source is not seekable")

// releaser is implemented by memory-mapped sources.
type releaser interface {
	// release lets the OS drop pages wholly before front.
	release(front int)
	// rewind is called after a backward seek to front.
	rewind(front int)
	close() error
}

// Buffer is a growable window over a byte source.
type Buffer struct {
	src    io.Reader
	seeker io.Seeker
	closer io.Closer
	mapped releaser

	buf        []byte
	start, end int   // live region buf[start:end]
	base       int64 // absolute source offset of buf[start]
	eof        bool
	err        error // sticky read error other than io.EOF
}

// New returns a Buffer reading from r. If r also implements io.Seeker the
// buffer supports Seek; if it implements io.Closer, Close closes it.
func New(r io.Reader) *Buffer {
	return NewSize(r, DefaultSize)
}

// NewSize is like New with an explicit initial capacity.
func NewSize(r io.Reader, size int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	b := &Buffer{src: r, buf: make([]byte, size)}
	if s, ok := r.(io.Seeker); ok {
		b.seeker = s
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			b.base = pos
		} else {
			b.seeker = nil
		}
	}
	if c, ok := r.(io.Closer); ok {
		b.closer = c
	}
	return b
}

// NewBytes returns a Buffer over an in-memory byte slice. The slice is used
// directly, without copying, and must not be modified while in use.
func NewBytes(data []byte) *Buffer {
	return &Buffer{buf: data, end: len(data), eof: true, seeker: bytesSeeker{}}
}

// OpenFile opens path and returns a seekable Buffer reading from it.
func OpenFile(path string) (*Buffer, error) {
	f, err := os.Open(path) //nolint:gosec // library opens caller-specified files
	if err != nil {
		return nil, err
	}
	return New(f), nil
}

// bytesSeeker marks in-memory and mapped buffers as seekable; Seek handles
// them without calling it.
type bytesSeeker struct{}

func (bytesSeeker) Seek(int64, int) (int64, error) { return 0, nil }

// Len returns the number of buffered bytes from the front.
func (b *Buffer) Len() int {
	return b.end - b.start
}

// Tell returns the absolute source offset of the front of the window.
func (b *Buffer) Tell() int64 {
	return b.base
}

// Seekable reports whether Seek is supported.
func (b *Buffer) Seekable() bool {
	return b.seeker != nil
}

// ReadUntil scans forward from offset from for delim, pulling more bytes
// from the source as needed. It returns the offset of delim. When the
// source ends first it returns Len(), which EOF then reports as exhausted.
func (b *Buffer) ReadUntil(delim byte, from int) (int, error) {
	for {
		if n := b.Len(); from < n {
			if i := bytes.IndexByte(b.buf[b.start+from:b.end], delim); i >= 0 {
				return from + i, nil
			}
			from = n
		}
		if b.eof {
			return b.Len(), nil
		}
		if err := b.fill(); err != nil {
			return b.Len(), err
		}
	}
}

// Read makes sure at least min bytes are buffered, or the source is
// exhausted, and returns the whole live region. The returned slice may be
// shorter than min only at the end of the source.
func (b *Buffer) Read(min int) ([]byte, error) {
	for b.Len() < min && !b.eof {
		if err := b.fill(); err != nil {
			return b.View(0, b.Len()), err
		}
	}
	return b.View(0, b.Len()), nil
}

// DropUntil moves the front of the window forward by off bytes. Views that
// end at or before the new front become invalid.
func (b *Buffer) DropUntil(off int) {
	if off < 0 || off > b.Len() {
		panic(fmt.Sprintf("window: drop of %d bytes with %d buffered", off, b.Len()))
	}
	b.start += off
	b.base += int64(off)
	if b.mapped != nil {
		b.mapped.release(b.start)
	}
}

// EOF reports whether off is at the end of the buffered data and the
// source has nothing more to give. A failed source read is returned as err,
// never reported as the end of the data.
func (b *Buffer) EOF(off int) (bool, error) {
	for off >= b.Len() && !b.eof {
		if err := b.fill(); err != nil {
			if off < b.Len() {
				return false, nil
			}
			return false, err
		}
	}
	return off >= b.Len(), nil
}

// View returns buffered bytes [from, to) relative to the front without
// copying. The result's capacity is clipped so appends cannot clobber the
// window.
func (b *Buffer) View(from, to int) []byte {
	return b.buf[b.start+from : b.start+to : b.start+to]
}

// WriteTo drains the window and the rest of the source into w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		data, err := b.Read(1)
		if len(data) > 0 {
			n, werr := w.Write(data)
			total += int64(n)
			b.DropUntil(n)
			if werr != nil {
				return total, werr
			}
		}
		if err != nil {
			return total, err
		}
		if len(data) == 0 {
			return total, nil
		}
	}
}

// Seek discards the window and repositions the source at the absolute
// offset off.
func (b *Buffer) Seek(off int64) error {
	if b.seeker == nil {
		return ErrNotSeekable
	}
	if off < 0 {
		return fmt.Errorf("window: negative seek offset %d", off)
	}
	if b.src == nil {
		// In-memory or mapped: the whole source is the buffer.
		if off > int64(b.end) {
			return fmt.Errorf("window: seek offset %d beyond end %d", off, b.end)
		}
		if b.mapped != nil && int(off) < b.start {
			b.mapped.rewind(int(off))
		}
		b.start = int(off)
		b.base = off
		return nil
	}
	if _, err := b.seeker.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("window: seeking to %d: %w", off, err)
	}
	b.start, b.end = 0, 0
	b.base = off
	b.eof = false
	b.err = nil
	return nil
}

// Close releases the source.
func (b *Buffer) Close() error {
	if b.mapped != nil {
		m := b.mapped
		b.mapped = nil
		b.buf = nil
		b.start, b.end = 0, 0
		return m.close()
	}
	if b.closer != nil {
		return b.closer.Close()
	}
	return nil
}

// fill reads once from the source into free space at the end of the
// window, making room first if there is none.
func (b *Buffer) fill() error {
	if b.err != nil {
		return b.err
	}
	if b.src == nil {
		b.eof = true
		return nil
	}
	if b.end == len(b.buf) {
		b.makeRoom()
	}
	var (
		n   int
		err error
	)
	for i := 0; n == 0 && err == nil; i++ {
		if i == maxEmptyReads {
			err = io.ErrNoProgress
			break
		}
		n, err = b.src.Read(b.buf[b.end:])
	}
	b.end += n
	switch {
	case errors.Is(err, io.EOF):
		b.eof = true
	case err != nil:
		b.err = err
		return err
	}
	return nil
}

// makeRoom frees space at the end of a full window. Live bytes are never
// moved within an array, since views may still point at them: they are
// copied into a fresh array, twice the size when more than half the window
// is live. An empty window is reset in place.
func (b *Buffer) makeRoom() {
	live := b.Len()
	if live == 0 {
		b.start, b.end = 0, 0
		return
	}
	size := len(b.buf)
	if live > size/2 {
		size *= 2
	}
	fresh := make([]byte, size)
	copy(fresh, b.buf[b.start:b.end])
	b.buf = fresh
	b.start, b.end = 0, live
}
