//go:build unix

package window

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var pageSize = os.Getpagesize()

// OpenMmap maps path read-only and returns a seekable Buffer over the
// mapping. Pages the front has moved past are handed back to the OS; a
// backward Seek faults them in again from the file.
func OpenMmap(path string) (*Buffer, error) {
	f, err := os.Open(path) //nolint:gosec // library opens caller-specified files
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // the mapping outlives the descriptor

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return NewBytes(nil), nil
	}
	if fi.Size() != int64(int(fi.Size())) {
		return nil, fmt.Errorf("window: %s too large to map", path)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED) //nolint:gosec // fd fits in int
	if err != nil {
		return nil, fmt.Errorf("window: mapping %s: %w", path, err)
	}
	b := NewBytes(data)
	b.mapped = &mapping{data: data}
	return b, nil
}

type mapping struct {
	data     []byte
	released int // pages in data[:released] have been released
}

func (m *mapping) release(front int) {
	aligned := front &^ (pageSize - 1)
	if aligned-m.released < ReleaseThreshold {
		return
	}
	// Advice is best effort; the mapping stays valid either way.
	_ = unix.Madvise(m.data[m.released:aligned], unix.MADV_DONTNEED)
	m.released = aligned
}

func (m *mapping) rewind(front int) {
	if front < m.released {
		m.released = front &^ (pageSize - 1)
	}
}

func (m *mapping) close() error {
	return unix.Munmap(m.data)
}
