package libsvm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csrow/csrow/rowblock"
)

func parseAll(t *testing.T, input string, opts ...Option) *rowblock.Container[uint64] {
	t.Helper()
	p := NewParser(strings.NewReader(input), opts...)
	out := rowblock.New[uint64]()
	p.BeforeFirst()
	for p.Next() {
		require.NoError(t, out.PushBlock(p.Value()))
	}
	require.NoError(t, p.Err())
	return out
}

func TestParserBasic(t *testing.T) {
	c := parseAll(t, "1 0:0.5 3:1.5 7:2.5\n-1 2:4\n2.5 1:0.1 5:0.2\n")

	require.Equal(t, 3, c.Size())
	block := c.GetBlock()
	assert.Equal(t, []uint64{0, 3, 4, 6}, block.Offset)
	assert.Equal(t, []float32{1, -1, 2.5}, block.Label)
	assert.Equal(t, []uint64{0, 3, 7, 2, 1, 5}, block.Index)
	assert.Equal(t, []float32{0.5, 1.5, 2.5, 4, 0.1, 0.2}, block.Value)
	assert.Equal(t, uint64(8), c.NumCol())
}

func TestParserCommentsAndBlankLines(t *testing.T) {
	input := "# header comment\n\n1 2:0.5 # trailing comment\n   \n0 1:1\n"
	c := parseAll(t, input)

	require.Equal(t, 2, c.Size())
	block := c.GetBlock()
	assert.Equal(t, []float32{1, 0}, block.Label)
	assert.Equal(t, []uint64{2, 1}, block.Index)
}

func TestParserLabelOnlyRow(t *testing.T) {
	c := parseAll(t, "1\n-1 4:2\n")
	require.Equal(t, 2, c.Size())

	row, err := c.GetBlock().Row(0)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Length())
	assert.Equal(t, float32(1), row.Label)
}

func TestParserNoTrailingNewline(t *testing.T) {
	c := parseAll(t, "1 0:1\n-1 1:2")
	assert.Equal(t, 2, c.Size())
}

func TestParserSmallChunksProduceMultipleBatches(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("1 3:0.5 9:1.5\n")
	}
	p := NewParser(strings.NewReader(sb.String()), WithChunkSize(32))

	batches := 0
	rows := 0
	p.BeforeFirst()
	for p.Next() {
		batches++
		rows += p.Value().Size()
	}
	require.NoError(t, p.Err())
	assert.Equal(t, 50, rows)
	assert.Greater(t, batches, 1)
}

func TestParserMalformed(t *testing.T) {
	cases := map[string]string{
		"bad label":   "x 1:2\n",
		"bad feature": "1 nocolon\n",
		"bad index":   "1 a:2\n",
		"bad value":   "1 1:z\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewParser(strings.NewReader(input))
			p.BeforeFirst()
			assert.False(t, p.Next())
			require.Error(t, p.Err())
			assert.ErrorContains(t, p.Err(), "line 1")
			// Cursor stays stopped after an error.
			assert.False(t, p.Next())
		})
	}
}

func TestParserBytesRead(t *testing.T) {
	input := "1 0:1\n-1 1:2\n"
	p := NewParser(strings.NewReader(input))
	p.BeforeFirst()
	for p.Next() {
	}
	require.NoError(t, p.Err())
	assert.Equal(t, int64(len(input)), p.BytesRead())
}

func TestParserRewindPanicsAfterStart(t *testing.T) {
	p := NewParser(strings.NewReader("1 0:1\n"))
	p.BeforeFirst()
	require.True(t, p.Next())
	assert.Panics(t, func() { p.BeforeFirst() })
}
