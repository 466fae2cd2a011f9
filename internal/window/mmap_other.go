//go:build !unix

package window

// OpenMmap falls back to a regular file-backed Buffer on platforms without
// mmap support.
func OpenMmap(path string) (*Buffer, error) {
	return OpenFile(path)
}
