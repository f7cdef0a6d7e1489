package rowblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowGetValueDefaultsToOne(t *testing.T) {
	row := Row[uint32]{
		Label: 1.0,
		Index: []uint32{0, 5, 9},
	}
	require.Equal(t, 3, row.Length())
	for i := 0; i < row.Length(); i++ {
		assert.Equal(t, float32(1.0), row.GetValue(i))
	}

	row.Value = []float32{0.5, 2.0, 3.0}
	assert.Equal(t, float32(2.0), row.GetValue(1))
	assert.Equal(t, uint32(9), row.GetIndex(2))
}

func TestRowDot(t *testing.T) {
	weight := []float32{1, 2, 3, 4}

	row := Row[uint32]{Index: []uint32{0, 2}, Value: []float32{2.0, 0.5}}
	sum, err := row.Dot(weight)
	require.NoError(t, err)
	assert.InDelta(t, 1*2.0+3*0.5, sum, 1e-6)

	// Absent values behave as 1.0.
	row.Value = nil
	sum, err = row.Dot(weight)
	require.NoError(t, err)
	assert.InDelta(t, 1+3, sum, 1e-6)

	// Index beyond the weight vector is an error.
	row.Index = []uint32{0, 4}
	_, err = row.Dot(weight)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestRowBlockRow(t *testing.T) {
	block := RowBlock[uint32]{
		Offset: []uint64{0, 2, 3},
		Label:  []float32{1.0, -1.0},
		Index:  []uint32{0, 2, 1},
		Value:  []float32{1.5, 2.5, 0.5},
	}
	require.Equal(t, 2, block.Size())
	require.Equal(t, uint64(3), block.NumIndex())

	r0, err := block.Row(0)
	require.NoError(t, err)
	assert.Equal(t, float32(1.0), r0.Label)
	assert.Equal(t, []uint32{0, 2}, r0.Index)
	assert.Equal(t, []float32{1.5, 2.5}, r0.Value)

	r1, err := block.Row(1)
	require.NoError(t, err)
	assert.Equal(t, float32(-1.0), r1.Label)
	assert.Equal(t, []uint32{1}, r1.Index)
	assert.Equal(t, []float32{0.5}, r1.Value)

	_, err = block.Row(2)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = block.Row(-1)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestRowBlockRowWithoutValues(t *testing.T) {
	block := RowBlock[uint64]{
		Offset: []uint64{0, 1},
		Label:  []float32{2.0},
		Index:  []uint64{42},
	}
	row, err := block.Row(0)
	require.NoError(t, err)
	assert.Nil(t, row.Value)
	assert.Equal(t, float32(1.0), row.GetValue(0))
}

func TestRowBlockClone(t *testing.T) {
	block := RowBlock[uint32]{
		Offset: []uint64{0, 2},
		Label:  []float32{1.0},
		Index:  []uint32{1, 3},
		Value:  []float32{0.5, 0.25},
	}
	clone := block.Clone()
	require.Equal(t, block, clone)

	// The clone must not alias the original buffers.
	block.Index[0] = 99
	assert.Equal(t, uint32(1), clone.Index[0])

	noValue := RowBlock[uint32]{Offset: []uint64{0, 1}, Label: []float32{1}, Index: []uint32{7}}
	assert.Nil(t, noValue.Clone().Value)
}
