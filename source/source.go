// Package source abstracts where a dataset's bytes live. A Source opens
// named blobs for ranged reading; URIs are resolved to a Source through an
// explicit scheme registry.
//
// Local files ("" and "file" schemes) are registered out of the box. Remote
// backends (source/s3, source/minio) and the in-memory store are registered
// by the caller during process-wide setup, before the first Resolve.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error satisfying
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Source opens read-only blobs by name. Implementations are safe for
// concurrent Open calls.
type Source interface {
	// Open opens a blob for reading. For bucket-scoped backends the name is
	// "bucket/key"; for local files it is a filesystem path.
	Open(ctx context.Context, name string) (Blob, error)
}

// Blob is a read-only handle to one dataset object.
type Blob interface {
	// Size returns the blob size in bytes.
	Size() int64
	// ReadRange returns a reader over [off, off+length). A length past the
	// end of the blob is truncated, not an error.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	io.Closer
}

var (
	schemesMu sync.RWMutex
	schemes   = map[string]Source{
		"":     Local{},
		"file": Local{},
	}
)

// RegisterScheme binds a URI scheme to a source. Register before the first
// Resolve; later registrations replace earlier ones.
func RegisterScheme(scheme string, s Source) {
	schemesMu.Lock()
	defer schemesMu.Unlock()
	schemes[scheme] = s
}

// Resolve splits a URI into the source registered for its scheme and the
// blob name within that source.
func Resolve(uri string) (Source, string, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		scheme, rest = "", uri
	}
	schemesMu.RLock()
	s, found := schemes[scheme]
	schemesMu.RUnlock()
	if !found {
		return nil, "", fmt.Errorf("source: unregistered scheme %q in %q", scheme, uri)
	}
	if scheme == "file" {
		rest = "/" + strings.TrimLeft(rest, "/")
	}
	return s, rest, nil
}
