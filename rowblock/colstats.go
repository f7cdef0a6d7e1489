package rowblock

import "github.com/RoaringBitmap/roaring/v2/roaring64"

// ColumnSet tracks the exact set of feature indexes observed across pushed
// rows. NumCol on a container is only a dense upper bound (1 + max index);
// a ColumnSet distinguishes that bound from the number of columns with
// nonzero support.
//
// Like the container it is single-owner and does no locking.
type ColumnSet struct {
	bm *roaring64.Bitmap
}

// NewColumnSet creates an empty column set.
func NewColumnSet() *ColumnSet {
	return &ColumnSet{bm: roaring64.New()}
}

// Add records one observed feature index.
func (s *ColumnSet) Add(idx uint64) {
	s.bm.Add(idx)
}

// Cardinality returns the number of distinct columns observed.
func (s *ColumnSet) Cardinality() uint64 {
	return s.bm.GetCardinality()
}

// Max returns the largest observed column, and false when empty.
func (s *ColumnSet) Max() (uint64, bool) {
	if s.bm.IsEmpty() {
		return 0, false
	}
	return s.bm.Maximum(), true
}

// Contains reports whether the column has nonzero support.
func (s *ColumnSet) Contains(idx uint64) bool {
	return s.bm.Contains(idx)
}

// ObserveBlock records every feature index of a batch.
func ObserveBlock[I Index](s *ColumnSet, b RowBlock[I]) {
	for _, idx := range b.Index[:b.NumIndex()] {
		s.bm.Add(uint64(idx))
	}
}
