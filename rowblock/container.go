package rowblock

import "fmt"

// Container is the sole owner of the growable buffers a row block is built
// in. It is append-only: rows and whole batches can be pushed, but nothing
// is ever deleted or mutated in place. Views materialized with GetBlock
// alias the current buffers and are invalidated by any later push, since
// buffer growth may relocate storage.
//
// The index width I is fixed at construction. Incoming rows and batches may
// carry a wider index type; every index is validated against I before any
// buffer is touched, so a failed push leaves the container unchanged.
//
// A Container is owned by a single goroutine; it performs no locking.
type Container[I Index] struct {
	offset []uint64
	label  []float32
	index  []I
	value  []float32

	maxIndex I
}

// New creates an empty container, equivalent to calling Clear on a zero
// value.
func New[I Index]() *Container[I] {
	c := &Container[I]{}
	c.Clear()
	return c
}

// Clear resets the container to its empty state: offset=[0], all other
// arrays empty, max index 0. Buffer capacity is retained for reuse.
func (c *Container[I]) Clear() {
	c.offset = append(c.offset[:0], 0)
	c.label = c.label[:0]
	c.index = c.index[:0]
	c.value = c.value[:0]
	c.maxIndex = 0
}

// Size returns the number of rows in the container.
func (c *Container[I]) Size() int {
	return len(c.offset) - 1
}

// MaxIndex returns the largest feature index ever appended.
func (c *Container[I]) MaxIndex() I {
	return c.maxIndex
}

// NumCol returns 1 + the largest feature index appended so far, a dense
// upper bound on the column count. It returns 0 while no nonzero entry has
// been appended.
func (c *Container[I]) NumCol() uint64 {
	if len(c.index) == 0 {
		return 0
	}
	return uint64(c.maxIndex) + 1
}

// Push appends one row. See PushRow for the validation and value-presence
// rules.
func (c *Container[I]) Push(row Row[uint64]) error {
	return PushRow(c, row)
}

// PushBlock appends a whole batch. See PushRowBlock for the offset merge
// arithmetic.
func (c *Container[I]) PushBlock(batch RowBlock[uint64]) error {
	return PushRowBlock(c, batch)
}

// PushRow appends one row of any index width J into a container of width I.
//
// Every incoming index must be strictly below the largest value
// representable by I; otherwise the push fails with ErrIndexOverflow and the
// container is unchanged (atomic reject).
//
// Mixed value presence is resolved by backfilling: if the row carries values
// but earlier rows did not (or vice versa), the implicit 1.0 values are
// materialized so that the container's value array is always either empty or
// in lockstep with the index array.
func PushRow[I, J Index](c *Container[I], row Row[J]) error {
	if row.Value != nil && len(row.Value) != len(row.Index) {
		return fmt.Errorf("rowblock: row value count %d inconsistent with index count %d", len(row.Value), len(row.Index))
	}
	limit := maxIndexValue[I]()
	for _, idx := range row.Index {
		if uint64(idx) >= limit {
			return fmt.Errorf("%w: index %d not below %d", ErrIndexOverflow, idx, limit)
		}
	}

	c.label = append(c.label, row.Label)
	for _, idx := range row.Index {
		cast := I(idx)
		c.index = append(c.index, cast)
		if cast > c.maxIndex {
			c.maxIndex = cast
		}
	}
	if row.Value != nil {
		c.backfillValues(len(c.index) - len(row.Index))
		c.value = append(c.value, row.Value...)
	} else if len(c.value) > 0 {
		c.value = appendOnes(c.value, len(row.Index))
	}
	c.offset = append(c.offset, uint64(len(c.index)))
	return nil
}

// PushRowBlock bulk-appends a batch of any index width J into a container of
// width I. Indexes are validated as in PushRow (atomic reject). Each
// incoming offset after the first is shifted by the container's current
// total index count, preserving global monotonicity; the appended rows keep
// their indices unchanged.
func PushRowBlock[I, J Index](c *Container[I], batch RowBlock[J]) error {
	size := batch.Size()
	if size == 0 {
		return nil
	}
	ndata := batch.Offset[size]
	if batch.Value != nil && uint64(len(batch.Value)) < ndata {
		return fmt.Errorf("rowblock: batch value count %d inconsistent with index count %d", len(batch.Value), ndata)
	}

	limit := maxIndexValue[I]()
	for _, idx := range batch.Index[:ndata] {
		if uint64(idx) >= limit {
			return fmt.Errorf("%w: index %d not below %d", ErrIndexOverflow, idx, limit)
		}
	}

	c.label = append(c.label, batch.Label[:size]...)
	for _, idx := range batch.Index[:ndata] {
		cast := I(idx)
		c.index = append(c.index, cast)
		if cast > c.maxIndex {
			c.maxIndex = cast
		}
	}
	if batch.Value != nil {
		c.backfillValues(len(c.index) - int(ndata))
		c.value = append(c.value, batch.Value[:ndata]...)
	} else if len(c.value) > 0 {
		c.value = appendOnes(c.value, int(ndata))
	}

	shift := c.offset[len(c.offset)-1] - batch.Offset[0]
	for _, off := range batch.Offset[1 : size+1] {
		c.offset = append(c.offset, shift+off)
	}
	return nil
}

// backfillValues materializes implicit 1.0 values for the first n index
// positions when a valueless container receives its first valued append.
func (c *Container[I]) backfillValues(n int) {
	if len(c.value) == 0 && n > 0 {
		c.value = appendOnes(c.value, n)
	}
}

func appendOnes(value []float32, n int) []float32 {
	for i := 0; i < n; i++ {
		value = append(value, 1.0)
	}
	return value
}

// GetBlock snapshots the current buffers as an immutable RowBlock view. The
// view borrows the container's storage and is invalidated by any later push.
//
// GetBlock asserts the container's consistency invariants and panics if they
// are violated; a violation means the container's own bookkeeping is broken,
// which is a data-integrity bug rather than a runtime condition.
func (c *Container[I]) GetBlock() RowBlock[I] {
	if len(c.label)+1 != len(c.offset) {
		panic(fmt.Sprintf("rowblock: label count %d inconsistent with offset count %d", len(c.label), len(c.offset)))
	}
	last := c.offset[len(c.offset)-1]
	if last != uint64(len(c.index)) {
		panic(fmt.Sprintf("rowblock: final offset %d inconsistent with index count %d", last, len(c.index)))
	}
	if len(c.value) != 0 && uint64(len(c.value)) != last {
		panic(fmt.Sprintf("rowblock: value count %d inconsistent with index count %d", len(c.value), last))
	}

	block := RowBlock[I]{
		Offset: c.offset,
		Label:  c.label,
		Index:  c.index,
	}
	if len(c.value) != 0 {
		block.Value = c.value
	}
	return block
}
