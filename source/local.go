package source

import (
	"context"
	"io"
	"os"
)

// Local serves blobs from the local file system. The blob name is the file
// path.
type Local struct{}

// Open opens a file for ranged reading.
func (Local) Open(_ context.Context, name string) (Blob, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &localBlob{f: f, size: fi.Size()}, nil
}

type localBlob struct {
	f    *os.File
	size int64
}

func (b *localBlob) Size() int64 {
	return b.size
}

func (b *localBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off > b.size {
		off = b.size
	}
	if off+length > b.size {
		length = b.size - off
	}
	return io.NopCloser(io.NewSectionReader(b.f, off, length)), nil
}

func (b *localBlob) Close() error {
	return b.f.Close()
}
