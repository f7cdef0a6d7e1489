// Package dataiter defines the pull-iterator protocol batches flow through,
// plus the adapters built on it: the in-memory materializing iterator and a
// background prefetcher.
//
// The cursor contract:
//
//	it.BeforeFirst()
//	for it.Next() {
//	    batch := it.Value()
//	    // use batch before the next cursor call
//	}
//
// Value is meaningful only immediately after a Next that returned true and
// only until the next BeforeFirst/Next call; there is no stable identity
// across steps. An iterator instance must not be shared by concurrent
// cursors.
package dataiter

import "github.com/csrow/csrow/rowblock"

// DataIter pulls a lazy sequence of elements on demand.
type DataIter[T any] interface {
	// BeforeFirst resets the cursor to a virtual position before the first
	// element.
	BeforeFirst()
	// Next advances one step and reports whether a current element exists.
	// It runs to completion, possibly blocking on upstream I/O.
	Next() bool
	// Value returns the current element.
	Value() T
}

// RowBlockIter iterates row block batches of a fixed index width.
type RowBlockIter[I rowblock.Index] interface {
	DataIter[rowblock.RowBlock[I]]

	// NumCol returns an upper bound on the column count, 1 + the maximum
	// feature index observed. It is well-defined only once the
	// implementation's documented coverage point has been reached; for
	// whole-file readers that is a full pass over the input.
	NumCol() uint64
}

// ByteSource is implemented by producers that can report how many raw input
// bytes they have consumed. The counter is monotonically non-decreasing and
// is used only for progress diagnostics.
type ByteSource interface {
	BytesRead() int64
}

// errSource is implemented by producers whose Next can stop early on a
// parse error rather than on exhaustion.
type errSource interface {
	Err() error
}
