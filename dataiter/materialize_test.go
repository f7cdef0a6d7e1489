package dataiter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csrow/csrow/rowblock"
)

// fakeProducer replays a fixed sequence of batches. It mimics a streaming
// parser: a byte counter, a deferred error after the last batch, and a
// Close that must be called exactly once.
type fakeProducer struct {
	blocks []rowblock.RowBlock[uint64]
	pos    int
	bytes  int64
	err    error
	closed bool
}

func newFakeProducer(blocks ...rowblock.RowBlock[uint64]) *fakeProducer {
	return &fakeProducer{blocks: blocks, pos: -1}
}

func (f *fakeProducer) BeforeFirst() { f.pos = -1 }

func (f *fakeProducer) Next() bool {
	if f.pos+1 >= len(f.blocks) {
		return false
	}
	f.pos++
	f.bytes += 100
	return true
}

func (f *fakeProducer) Value() rowblock.RowBlock[uint64] { return f.blocks[f.pos] }

func (f *fakeProducer) Err() error { return f.err }

func (f *fakeProducer) BytesRead() int64 { return f.bytes }

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func twoBatches() []rowblock.RowBlock[uint64] {
	return []rowblock.RowBlock[uint64]{
		{
			Offset: []uint64{0, 2, 3},
			Label:  []float32{1, -1},
			Index:  []uint64{3, 7, 1},
			Value:  []float32{0.5, 1.5, 2.5},
		},
		{
			Offset: []uint64{0, 1},
			Label:  []float32{2},
			Index:  []uint64{5},
			Value:  []float32{4.0},
		},
	}
}

func TestMaterializeDrainsAllBatches(t *testing.T) {
	src := newFakeProducer(twoBatches()...)

	it, err := Materialize[uint32](src)
	require.NoError(t, err)

	require.True(t, it.Next())
	block := it.Value()
	assert.Equal(t, 3, block.Size())
	assert.Equal(t, []uint64{0, 2, 3, 4}, block.Offset)
	assert.Equal(t, []uint32{3, 7, 1, 5}, block.Index)
	assert.Equal(t, uint64(8), it.NumCol())
	assert.Equal(t, int64(200), it.BytesRead())
	assert.True(t, src.closed)
}

func TestMaterializeOneShotCursor(t *testing.T) {
	it, err := Materialize[uint32](newFakeProducer(twoBatches()...))
	require.NoError(t, err)

	require.True(t, it.Next())
	assert.False(t, it.Next())
	assert.False(t, it.Next())

	it.BeforeFirst()
	require.True(t, it.Next())
	assert.Equal(t, 3, it.Value().Size())
	assert.False(t, it.Next())
}

func TestMaterializeEmptyUpstream(t *testing.T) {
	it, err := Materialize[uint64](newFakeProducer())
	require.NoError(t, err)

	require.True(t, it.Next())
	assert.Equal(t, 0, it.Value().Size())
	assert.Equal(t, uint64(0), it.NumCol())
}

func TestMaterializeOverflowAborts(t *testing.T) {
	src := newFakeProducer(rowblock.RowBlock[uint64]{
		Offset: []uint64{0, 1},
		Label:  []float32{1},
		Index:  []uint64{1 << 20},
	})

	it, err := Materialize[uint16](src)
	require.ErrorIs(t, err, rowblock.ErrIndexOverflow)
	assert.Nil(t, it)
	assert.True(t, src.closed)
}

func TestMaterializePropagatesUpstreamError(t *testing.T) {
	src := newFakeProducer(twoBatches()...)
	src.err = errors.New("line 12: bad token")

	it, err := Materialize[uint32](src)
	require.ErrorContains(t, err, "bad token")
	assert.Nil(t, it)
}

func TestMaterializeColumnStats(t *testing.T) {
	cols := rowblock.NewColumnSet()
	it, err := Materialize[uint32](newFakeProducer(twoBatches()...), WithColumnStats(cols))
	require.NoError(t, err)

	// Dense bound counts the gap columns, exact support does not.
	assert.Equal(t, uint64(8), it.NumCol())
	assert.Equal(t, uint64(4), cols.Cardinality())
	assert.True(t, cols.Contains(5))
	assert.False(t, cols.Contains(2))
}

func TestMaterializeContainerAccess(t *testing.T) {
	it, err := Materialize[uint32](newFakeProducer(twoBatches()...))
	require.NoError(t, err)

	c := it.Container()
	require.NotNil(t, c)
	assert.Equal(t, 3, c.Size())
	assert.Equal(t, uint32(7), c.MaxIndex())
}
