package dataiter

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/csrow/csrow/rowblock"
)

// DefaultProgressInterval is the cumulative-bytes-read step between progress
// log records while draining an upstream producer.
const DefaultProgressInterval int64 = 10 << 20

// Materialized drains an upstream batch producer fully into one container
// and exposes the single resulting batch as a one-shot iterator.
type Materialized[I rowblock.Index] struct {
	data   *rowblock.Container[I]
	block  rowblock.RowBlock[I]
	atHead bool

	bytesRead int64
}

type materializeOptions struct {
	logger           *slog.Logger
	progressInterval int64
	columns          *rowblock.ColumnSet
}

// MaterializeOption configures Materialize.
type MaterializeOption func(*materializeOptions)

// WithLogger sets the logger progress diagnostics are emitted on. By
// default progress is not logged.
func WithLogger(logger *slog.Logger) MaterializeOption {
	return func(o *materializeOptions) {
		o.logger = logger
	}
}

// WithProgressInterval sets the cumulative-bytes-read threshold step for
// progress records. Progress is a diagnostic side effect only; omitting it
// never affects the loaded data.
func WithProgressInterval(bytes int64) MaterializeOption {
	return func(o *materializeOptions) {
		if bytes > 0 {
			o.progressInterval = bytes
		}
	}
}

// WithColumnStats feeds every pushed batch into cols, so the caller can
// obtain exact nonzero-column support alongside the NumCol upper bound.
func WithColumnStats(cols *rowblock.ColumnSet) MaterializeOption {
	return func(o *materializeOptions) {
		o.columns = cols
	}
}

// Materialize pulls every batch out of parser and buffers it into a single
// container of index width I.
//
// Any push validation failure aborts the load and no iterator is produced.
// If parser reports a deferred error (an Err method) or implements
// io.Closer, those are honored after the drain. Progress records are
// emitted while loading when parser implements ByteSource and a logger is
// configured.
func Materialize[I rowblock.Index](parser DataIter[rowblock.RowBlock[uint64]], opts ...MaterializeOption) (*Materialized[I], error) {
	o := materializeOptions{
		progressInterval: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	it := &Materialized[I]{
		data:   rowblock.New[I](),
		atHead: true,
	}
	if err := it.init(parser, &o); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Materialized[I]) init(parser DataIter[rowblock.RowBlock[uint64]], o *materializeOptions) error {
	if c, ok := parser.(io.Closer); ok {
		defer c.Close()
	}

	it.data.Clear()
	start := time.Now()
	byteSource, _ := parser.(ByteSource)
	nextReport := o.progressInterval

	parser.BeforeFirst()
	for parser.Next() {
		batch := parser.Value()
		if err := it.data.PushBlock(batch); err != nil {
			return fmt.Errorf("materialize: %w", err)
		}
		if o.columns != nil {
			rowblock.ObserveBlock(o.columns, batch)
		}
		if byteSource == nil {
			continue
		}
		it.bytesRead = byteSource.BytesRead()
		if o.logger != nil && it.bytesRead >= nextReport {
			elapsed := time.Since(start).Seconds()
			mb := float64(it.bytesRead) / float64(1<<20)
			o.logger.Info("reading input",
				"mb_read", int64(mb),
				"mb_per_sec", mb/elapsed,
			)
			nextReport += o.progressInterval
		}
	}
	if es, ok := parser.(errSource); ok {
		if err := es.Err(); err != nil {
			return fmt.Errorf("materialize: %w", err)
		}
	}
	if byteSource != nil {
		it.bytesRead = byteSource.BytesRead()
	}

	it.block = it.data.GetBlock()

	if o.logger != nil {
		elapsed := time.Since(start).Seconds()
		mb := float64(it.bytesRead) / float64(1<<20)
		o.logger.Info("finished reading input",
			"rows", it.data.Size(),
			"mb_read", int64(mb),
			"mb_per_sec", mb/elapsed,
		)
	}
	return nil
}

// BeforeFirst rewinds the one-shot cursor.
func (it *Materialized[I]) BeforeFirst() {
	it.atHead = true
}

// Next unlatches the materialized batch: it returns true exactly once after
// each BeforeFirst.
func (it *Materialized[I]) Next() bool {
	if it.atHead {
		it.atHead = false
		return true
	}
	return false
}

// Value returns the materialized batch.
func (it *Materialized[I]) Value() rowblock.RowBlock[I] {
	return it.block
}

// NumCol returns 1 + the maximum feature index observed across all pushed
// rows. The full pass over the upstream has already happened by the time a
// Materialized exists, so this is always well-defined.
func (it *Materialized[I]) NumCol() uint64 {
	return it.data.NumCol()
}

// BytesRead reports the raw bytes the upstream producer had consumed when
// the drain finished, when the upstream exposed a counter.
func (it *Materialized[I]) BytesRead() int64 {
	return it.bytesRead
}

// Container exposes the backing container, e.g. to save the materialized
// block as a binary record. The container must not be mutated while views
// from Value are in use.
func (it *Materialized[I]) Container() *rowblock.Container[I] {
	return it.data
}
