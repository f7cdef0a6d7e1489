// Package split partitions one logical text dataset across independent
// readers. Part k of n covers the byte range [size*k/n, size*(k+1)/n),
// realigned to line boundaries so that every line of the input belongs to
// exactly one part: a reader discards the partial line it lands in and
// finishes the line that straddles its end.
//
// Compressed inputs (.gz, .zst, .lz4) are not range-splittable: part 0
// receives the whole decompressed stream and every other part is empty.
package split

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"

	"github.com/csrow/csrow/source"
)

const defaultBufferSize = 64 << 10

type options struct {
	rateLimit  int64
	bufferSize int
}

// Option configures Open.
type Option func(*options)

// WithRateLimit throttles raw input consumption to bytesPerSec. Zero means
// unlimited.
func WithRateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.rateLimit = bytesPerSec
	}
}

// WithBufferSize sets the read buffer size.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// Reader streams the lines of one part. It implements io.ReadCloser; the
// byte counter reports raw bytes consumed from the underlying blob,
// before decompression.
type Reader struct {
	blob    source.Blob
	rc      io.ReadCloser
	dec     io.Closer
	counter *CountingReader
	br      *bufio.Reader

	pos         int64
	end         int64
	atLineStart bool
	eof         bool
}

// Open resolves uri and opens part partIndex of numParts.
func Open(ctx context.Context, uri string, partIndex, numParts uint32, opts ...Option) (*Reader, error) {
	o := options{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	if numParts == 0 {
		return nil, fmt.Errorf("split: numParts must be positive")
	}
	if partIndex >= numParts {
		return nil, fmt.Errorf("split: part %d out of %d", partIndex, numParts)
	}

	src, name, err := source.Resolve(uri)
	if err != nil {
		return nil, err
	}
	blob, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	if compressedExt(name) {
		return openCompressed(ctx, blob, name, partIndex, &o)
	}
	return openRange(ctx, blob, partIndex, numParts, &o)
}

func openRange(ctx context.Context, blob source.Blob, partIndex, numParts uint32, o *options) (*Reader, error) {
	size := blob.Size()
	begin := size * int64(partIndex) / int64(numParts)
	end := size * int64(partIndex+1) / int64(numParts)

	// Start one byte early so a part whose range begins exactly at a line
	// start does not discard that line: the skip then only consumes the
	// previous part's trailing newline.
	readFrom := begin
	if begin > 0 {
		readFrom = begin - 1
	}
	rc, err := blob.ReadRange(ctx, readFrom, size-readFrom)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}

	r := newReader(ctx, blob, rc, readFrom, end, o)
	if begin > 0 {
		if err := r.skipPartialLine(); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

func openCompressed(ctx context.Context, blob source.Blob, name string, partIndex uint32, o *options) (*Reader, error) {
	if partIndex != 0 {
		// Not range-splittable; every part but the first is empty.
		r := &Reader{blob: blob, counter: NewCountingReader(nil), eof: true}
		return r, nil
	}
	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	counter := NewCountingReader(rc)
	var raw io.Reader = counter
	if o.rateLimit > 0 {
		raw = NewRateLimitedReader(ctx, raw, o.rateLimit)
	}
	dec, closer, err := newDecompressor(name, raw)
	if err != nil {
		_ = rc.Close()
		_ = blob.Close()
		return nil, err
	}
	return &Reader{
		blob:        blob,
		rc:          rc,
		dec:         closer,
		counter:     counter,
		br:          bufio.NewReaderSize(dec, o.bufferSize),
		end:         math.MaxInt64,
		atLineStart: true,
	}, nil
}

func newReader(ctx context.Context, blob source.Blob, rc io.ReadCloser, pos, end int64, o *options) *Reader {
	counter := NewCountingReader(rc)
	var raw io.Reader = counter
	if o.rateLimit > 0 {
		raw = NewRateLimitedReader(ctx, raw, o.rateLimit)
	}
	return &Reader{
		blob:        blob,
		rc:          rc,
		counter:     counter,
		br:          bufio.NewReaderSize(raw, o.bufferSize),
		pos:         pos,
		end:         end,
		atLineStart: true,
	}
}

// skipPartialLine discards bytes up to and including the first newline.
func (r *Reader) skipPartialLine() error {
	for {
		b, err := r.br.ReadByte()
		if err == io.EOF {
			r.eof = true
			return nil
		}
		if err != nil {
			return err
		}
		r.pos++
		if b == '\n' {
			return nil
		}
	}
}

// Read implements io.Reader over this part's lines.
func (r *Reader) Read(p []byte) (int, error) {
	if r.eof {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	if r.pos < r.end {
		limit := r.end - r.pos
		if int64(len(p)) < limit {
			limit = int64(len(p))
		}
		n, err := r.br.Read(p[:limit])
		if n > 0 {
			r.pos += int64(n)
			r.atLineStart = p[n-1] == '\n'
		}
		if err == io.EOF {
			r.eof = true
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if r.pos >= r.end && r.atLineStart {
			r.eof = true
		}
		return n, nil
	}

	// Past the range end: finish the straddling line, byte by byte.
	if r.atLineStart {
		r.eof = true
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		b, err := r.br.ReadByte()
		if err == io.EOF {
			r.eof = true
			break
		}
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
		if b == '\n' {
			r.eof = true
			r.atLineStart = true
			break
		}
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// BytesRead returns the raw bytes consumed from the underlying blob.
func (r *Reader) BytesRead() int64 {
	return r.counter.BytesRead()
}

// Close releases the range reader, the decompressor and the blob handle.
func (r *Reader) Close() error {
	var first error
	if r.dec != nil {
		if err := r.dec.Close(); err != nil {
			first = err
		}
	}
	if r.rc != nil {
		if err := r.rc.Close(); err != nil && first == nil {
			first = err
		}
	}
	if r.blob != nil {
		if err := r.blob.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
