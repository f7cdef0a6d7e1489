package csrow

import (
	"github.com/csrow/csrow/rowblock"
)

type options struct {
	logger           *Logger
	progressInterval int64
	prefetchDepth    int
	chunkSize        int
	rateLimit        int64
	columns          *rowblock.ColumnSet
}

// Option configures Create.
type Option func(*options)

// WithLogger sets the logger used for read-progress diagnostics. By default
// nothing is logged.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithProgressInterval sets the cumulative-bytes-read step between progress
// log records.
func WithProgressInterval(bytes int64) Option {
	return func(o *options) {
		o.progressInterval = bytes
	}
}

// WithPrefetch buffers up to depth parsed batches in a background goroutine
// so parsing overlaps with materialization. Zero disables prefetching.
func WithPrefetch(depth int) Option {
	return func(o *options) {
		o.prefetchDepth = depth
	}
}

// WithChunkSize sets the approximate input bytes a parser tokenizes per
// batch.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithRateLimit throttles raw input consumption to bytesPerSec.
func WithRateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.rateLimit = bytesPerSec
	}
}

// WithColumnStats records every observed feature index into cols while
// loading, giving exact nonzero-column support next to the NumCol bound.
func WithColumnStats(cols *rowblock.ColumnSet) Option {
	return func(o *options) {
		o.columns = cols
	}
}
