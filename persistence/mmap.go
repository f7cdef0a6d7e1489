package persistence

import (
	"errors"
	"os"
	"sync/atomic"
)

// ErrMmapUnsupported indicates that mmap isn't supported on this platform.
var ErrMmapUnsupported = errors.New("mmap unsupported")

// Mapping represents a read-only memory-mapped file.
//
// Bytes() aliases the mapped region; any slices derived from it become
// invalid after Close. Higher-level loaders keep the mapping alive for as
// long as they need zero-copy views.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// MapFile maps the file at path into memory as read-only.
func MapFile(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}

	data, unmapFunc, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmapFunc}, nil
}

// Bytes returns the mapped region. The slice is valid only until Close.
func (m *Mapping) Bytes() []byte {
	if m == nil || m.closed.Load() {
		return nil
	}
	return m.data
}

// Close unmaps the region. It is idempotent.
func (m *Mapping) Close() error {
	if m == nil || m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}
