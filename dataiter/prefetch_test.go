package dataiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csrow/csrow/rowblock"
)

func drain(p *Prefetcher[rowblock.RowBlock[uint64]]) []rowblock.RowBlock[uint64] {
	var out []rowblock.RowBlock[uint64]
	for p.Next() {
		out = append(out, p.Value())
	}
	return out
}

func TestPrefetcherPreservesOrder(t *testing.T) {
	want := twoBatches()
	p := NewPrefetcher[rowblock.RowBlock[uint64]](newFakeProducer(want...), rowblock.RowBlock[uint64].Clone, 2)
	defer p.Close()

	p.BeforeFirst()
	got := drain(p)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i], "batch %d", i)
	}
	assert.Equal(t, int64(200), p.BytesRead())
	assert.NoError(t, p.Err())
}

func TestPrefetcherClonesBatches(t *testing.T) {
	batches := twoBatches()
	p := NewPrefetcher[rowblock.RowBlock[uint64]](newFakeProducer(batches...), rowblock.RowBlock[uint64].Clone, 1)
	defer p.Close()

	require.True(t, p.Next())
	got := p.Value()
	// The prefetched copy must not alias the producer's buffers.
	batches[0].Index[0] = 999
	assert.Equal(t, uint64(3), got.Index[0])
}

func TestPrefetcherBeforeFirstAtHeadIsNoop(t *testing.T) {
	src := newFakeProducer(twoBatches()...)
	p := NewPrefetcher[rowblock.RowBlock[uint64]](src, rowblock.RowBlock[uint64].Clone, 1)
	defer p.Close()

	// Calling BeforeFirst before any Next must not restart the producer;
	// that is what lets a single-pass upstream sit behind a prefetcher.
	p.BeforeFirst()
	p.BeforeFirst()
	assert.Len(t, drain(p), 2)
}

func TestPrefetcherRewind(t *testing.T) {
	p := NewPrefetcher[rowblock.RowBlock[uint64]](newFakeProducer(twoBatches()...), rowblock.RowBlock[uint64].Clone, 4)
	defer p.Close()

	assert.Len(t, drain(p), 2)

	// fakeProducer supports rewinding, so a post-drain BeforeFirst replays.
	p.BeforeFirst()
	assert.Len(t, drain(p), 2)
}

func TestPrefetcherErrAfterExhaustion(t *testing.T) {
	src := newFakeProducer(twoBatches()...)
	src.err = assert.AnError
	p := NewPrefetcher[rowblock.RowBlock[uint64]](src, rowblock.RowBlock[uint64].Clone, 1)
	defer p.Close()

	// The deferred error surfaces only once the producer has stopped.
	assert.NoError(t, p.Err())
	drain(p)
	assert.ErrorIs(t, p.Err(), assert.AnError)
}

func TestPrefetcherCloseStopsProducer(t *testing.T) {
	src := newFakeProducer(twoBatches()...)
	p := NewPrefetcher[rowblock.RowBlock[uint64]](src, rowblock.RowBlock[uint64].Clone, 1)

	require.True(t, p.Next())
	require.NoError(t, p.Close())
	assert.True(t, src.closed)
}

func TestPrefetcherThroughMaterialize(t *testing.T) {
	src := newFakeProducer(twoBatches()...)
	p := NewPrefetcher[rowblock.RowBlock[uint64]](src, rowblock.RowBlock[uint64].Clone, 2)

	it, err := Materialize[uint32](p)
	require.NoError(t, err)

	require.True(t, it.Next())
	assert.Equal(t, 3, it.Value().Size())
	assert.Equal(t, int64(200), it.BytesRead())
	assert.True(t, src.closed)
}
