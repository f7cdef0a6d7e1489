// Package rowblock implements a compressed-sparse-row (CSR) representation
// of labeled training rows for streaming data loaders.
//
// A block stores its rows as four parallel flattened arrays: a monotone
// offset array, a label array, a feature index array and an optional feature
// value array. Row i is the contiguous run [offset[i], offset[i+1]) of the
// index/value arrays. A nil value array means every value is implicitly 1.0.
//
// Row and RowBlock are borrowed views: they alias buffers owned by a
// Container (or a memory mapping) and are invalidated by any later append to
// that owner. Callers must not retain a view across an append.
package rowblock

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for row or feature indexes outside their
	// valid range.
	ErrOutOfRange = errors.New("out of range")

	// ErrIndexOverflow is returned when an incoming feature index cannot be
	// represented in the container's index width. It signals corrupt
	// upstream data or a misconfigured width; the failed call leaves the
	// container unchanged.
	ErrIndexOverflow = errors.New("feature index exceeds index width")

	// ErrBadFormat is returned when a serialized row block cannot be read
	// back. It signals truncated or incompatible data.
	ErrBadFormat = errors.New("bad row block format")
)

// Index is the closed set of integer widths a feature index may be stored
// with. The width is fixed per container at construction; mixing widths goes
// through validated casts in PushRow/PushRowBlock.
type Index interface {
	~uint16 | ~uint32 | ~uint64
}

// maxIndexValue returns the largest value representable by I. Incoming
// indexes must be strictly below it; the top value is reserved so that a
// width-sized sentinel can never collide with real data.
func maxIndexValue[I Index]() uint64 {
	return uint64(^I(0))
}

// Row is a read-only cursor over one row's label and sparse features,
// borrowed from a block's buffers.
type Row[I Index] struct {
	// Label of the instance.
	Label float32
	// Index holds the feature index of each nonzero entry.
	Index []I
	// Value holds the feature values. A nil slice means every value is 1.0.
	Value []float32
}

// Length returns the number of nonzero entries in the row.
func (r Row[I]) Length() int {
	return len(r.Index)
}

// GetIndex returns the i-th feature index.
func (r Row[I]) GetIndex(i int) I {
	return r.Index[i]
}

// GetValue returns the i-th feature value. It is always safe to call even
// when the value array is absent, in which case it returns 1.0.
func (r Row[I]) GetValue(i int) float32 {
	if r.Value == nil {
		return 1.0
	}
	return r.Value[i]
}

// Dot computes the sparse dot product of the row with a dense weight vector.
// It fails with ErrOutOfRange if any feature index is not below len(weight).
func (r Row[I]) Dot(weight []float32) (float32, error) {
	var sum float32
	if r.Value == nil {
		for _, idx := range r.Index {
			if uint64(idx) >= uint64(len(weight)) {
				return 0, fmt.Errorf("%w: feature index %d exceeds weight size %d", ErrOutOfRange, idx, len(weight))
			}
			sum += weight[idx]
		}
		return sum, nil
	}
	for i, idx := range r.Index {
		if uint64(idx) >= uint64(len(weight)) {
			return 0, fmt.Errorf("%w: feature index %d exceeds weight size %d", ErrOutOfRange, idx, len(weight))
		}
		sum += weight[idx] * r.Value[i]
	}
	return sum, nil
}

// RowBlock is a read-only batch of rows stored as four parallel flattened
// arrays. It borrows storage from its owner; see the package comment for the
// invalidation rules.
type RowBlock[I Index] struct {
	// Offset has length Size()+1, is monotonically non-decreasing and
	// starts at 0. Offset[Size()] is the total nonzero count.
	Offset []uint64
	// Label has one entry per row.
	Label []float32
	// Index has length Offset[Size()].
	Index []I
	// Value is nil (all values 1.0) or has length Offset[Size()].
	Value []float32
}

// Size returns the number of rows in the block.
func (b RowBlock[I]) Size() int {
	if len(b.Offset) == 0 {
		return 0
	}
	return len(b.Offset) - 1
}

// NumIndex returns the total nonzero count of the block.
func (b RowBlock[I]) NumIndex() uint64 {
	if len(b.Offset) == 0 {
		return 0
	}
	return b.Offset[len(b.Offset)-1]
}

// Row returns the view of row i, an O(1) slice into the offset range that
// shares the block's borrowed storage. It fails with ErrOutOfRange if i is
// not below Size().
func (b RowBlock[I]) Row(i int) (Row[I], error) {
	if i < 0 || i >= b.Size() {
		return Row[I]{}, fmt.Errorf("%w: row %d of %d", ErrOutOfRange, i, b.Size())
	}
	lo, hi := b.Offset[i], b.Offset[i+1]
	row := Row[I]{
		Label: b.Label[i],
		Index: b.Index[lo:hi],
	}
	if b.Value != nil {
		row.Value = b.Value[lo:hi]
	}
	return row, nil
}

// Clone deep-copies the block into freshly owned buffers. Use it to carry a
// batch beyond the lifetime of the producer's buffers, e.g. across a
// prefetch channel.
func (b RowBlock[I]) Clone() RowBlock[I] {
	out := RowBlock[I]{
		Offset: append([]uint64(nil), b.Offset...),
		Label:  append([]float32(nil), b.Label...),
		Index:  append([]I(nil), b.Index...),
	}
	if b.Value != nil {
		out.Value = append([]float32(nil), b.Value...)
	}
	return out
}
