package split

import (
	"context"
	"io"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/time/rate"
)

// CountingReader wraps an io.Reader and counts the bytes consumed from it.
// The counter is monotonically non-decreasing and safe to read from another
// goroutine.
type CountingReader struct {
	r io.Reader
	n atomic.Int64
}

// NewCountingReader creates a counting wrapper around r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n.Add(int64(n))
	}
	return n, err
}

// BytesRead returns the cumulative bytes consumed so far.
func (c *CountingReader) BytesRead() int64 {
	return c.n.Load()
}

// RateLimitedReader wraps an io.Reader with byte-rate throttling.
type RateLimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

// NewRateLimitedReader throttles reads from r to bytesPerSec.
func NewRateLimitedReader(ctx context.Context, r io.Reader, bytesPerSec int64) *RateLimitedReader {
	return &RateLimitedReader{
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec)),
		ctx:     ctx,
	}
}

func (r *RateLimitedReader) Read(p []byte) (int, error) {
	// Reserve for the full buffer up front; the burst bounds how large a
	// single read may be.
	want := len(p)
	if burst := r.limiter.Burst(); want > burst {
		want = burst
		p = p[:want]
	}
	if err := r.limiter.WaitN(r.ctx, want); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// compressedExt reports whether the blob name carries a recognized
// compression extension. Compressed inputs cannot be range-split.
func compressedExt(name string) bool {
	return strings.HasSuffix(name, ".gz") ||
		strings.HasSuffix(name, ".zst") ||
		strings.HasSuffix(name, ".zstd") ||
		strings.HasSuffix(name, ".lz4")
}

// newDecompressor wraps r with the decompressor selected by the blob name's
// extension. The returned closer releases decoder resources, not r.
func newDecompressor(name string, r io.Reader) (io.Reader, io.Closer, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr, nil
	case strings.HasSuffix(name, ".zst"), strings.HasSuffix(name, ".zstd"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		rc := zr.IOReadCloser()
		return rc, rc, nil
	case strings.HasSuffix(name, ".lz4"):
		return lz4.NewReader(r), nopCloser{}, nil
	default:
		return r, nopCloser{}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
