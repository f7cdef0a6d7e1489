// Package csrow loads sparse labeled training data into compressed-sparse-
// row blocks for streaming machine-learning consumers.
//
// The facade resolves a dataset URI, picks a parser by format tag, and
// materializes one part of the dataset into memory:
//
//	it, err := csrow.Create[uint32](ctx, "train.svm", 0, 1, "libsvm")
//	if err != nil { ... }
//	it.BeforeFirst()
//	for it.Next() {
//	    block := it.Value()
//	    // iterate block.Row(i)
//	}
//
// Format parsers are selected through an explicit registry. "libsvm" is
// registered out of the box; additional formats must be registered during
// process-wide setup, before the first Create. Likewise remote dataset
// schemes (see source/s3 and source/minio) are registered on the source
// registry before first use.
package csrow

import (
	"context"
	"fmt"
	"sync"

	"github.com/csrow/csrow/dataiter"
	"github.com/csrow/csrow/libsvm"
	"github.com/csrow/csrow/rowblock"
	"github.com/csrow/csrow/split"
)

// FormatFactory builds the batch producer for one part of a dataset. The
// returned iterator yields RowBlock[uint64] batches; Create casts them down
// to the requested index width while materializing.
type FormatFactory func(ctx context.Context, uri string, partIndex, numParts uint32, cfg FormatConfig) (dataiter.DataIter[rowblock.RowBlock[uint64]], error)

// FormatConfig carries the loader options a parser may honor.
type FormatConfig struct {
	// ChunkSize is the approximate input bytes per batch; zero means the
	// parser's default.
	ChunkSize int
	// RateLimit throttles raw input bytes per second; zero means unlimited.
	RateLimit int64
}

var (
	formatsMu sync.RWMutex
	formats   = map[string]FormatFactory{
		"libsvm": libsvmFactory,
	}
)

// RegisterFormat binds a format tag to a parser factory. Register before
// the first Create; later registrations replace earlier ones.
func RegisterFormat(name string, f FormatFactory) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	formats[name] = f
}

func lookupFormat(name string) (FormatFactory, bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	f, ok := formats[name]
	return f, ok
}

// Create opens part partIndex of numParts of the dataset at uri, parses it
// with the registered parser for format, and returns a fully materialized
// one-shot row block iterator of index width I.
//
// Parts are non-overlapping slices of one logical dataset, so independent
// readers can each take their own part.
func Create[I rowblock.Index](ctx context.Context, uri string, partIndex, numParts uint32, format string, opts ...Option) (dataiter.RowBlockIter[I], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	factory, ok := lookupFormat(format)
	if !ok {
		return nil, fmt.Errorf("csrow: unknown format %q", format)
	}
	parser, err := factory(ctx, uri, partIndex, numParts, FormatConfig{
		ChunkSize: o.chunkSize,
		RateLimit: o.rateLimit,
	})
	if err != nil {
		return nil, err
	}
	if o.prefetchDepth > 0 {
		parser = dataiter.NewPrefetcher(parser, rowblock.RowBlock[uint64].Clone, o.prefetchDepth)
	}

	var mopts []dataiter.MaterializeOption
	if o.logger != nil {
		mopts = append(mopts, dataiter.WithLogger(o.logger.WithURI(uri).WithPart(partIndex, numParts).Logger))
	}
	if o.progressInterval > 0 {
		mopts = append(mopts, dataiter.WithProgressInterval(o.progressInterval))
	}
	if o.columns != nil {
		mopts = append(mopts, dataiter.WithColumnStats(o.columns))
	}
	return dataiter.Materialize[I](parser, mopts...)
}

func libsvmFactory(ctx context.Context, uri string, partIndex, numParts uint32, cfg FormatConfig) (dataiter.DataIter[rowblock.RowBlock[uint64]], error) {
	var sopts []split.Option
	if cfg.RateLimit > 0 {
		sopts = append(sopts, split.WithRateLimit(cfg.RateLimit))
	}
	r, err := split.Open(ctx, uri, partIndex, numParts, sopts...)
	if err != nil {
		return nil, err
	}
	var popts []libsvm.Option
	if cfg.ChunkSize > 0 {
		popts = append(popts, libsvm.WithChunkSize(cfg.ChunkSize))
	}
	return libsvm.NewParser(r, popts...), nil
}
