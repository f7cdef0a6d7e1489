package split

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csrow/csrow/source"
)

func writeLines(t *testing.T, n int) (string, []string) {
	t.Helper()
	lines := make([]string, n)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		lines[i] = fmt.Sprintf("line-%03d some payload %d", i, i*i)
		sb.WriteString(lines[i])
		sb.WriteByte('\n')
	}
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path, lines
}

func readPart(t *testing.T, uri string, part, parts uint32, opts ...Option) []string {
	t.Helper()
	r, err := Open(context.Background(), uri, part, parts, opts...)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestPartsExactlyPartition(t *testing.T) {
	path, want := writeLines(t, 37)

	for _, numParts := range []uint32{1, 2, 3, 5, 8, 37, 100} {
		var got []string
		for part := uint32(0); part < numParts; part++ {
			got = append(got, readPart(t, path, part, numParts)...)
		}
		assert.Equal(t, want, got, "numParts=%d", numParts)
	}
}

func TestPartBoundaryAtLineStart(t *testing.T) {
	// Two lines of equal length: the halfway byte offset lands exactly on
	// the start of the second line, which must belong to part 1.
	path := filepath.Join(t.TempDir(), "even.txt")
	require.NoError(t, os.WriteFile(path, []byte("aaaa\nbbbb\n"), 0o644))

	assert.Equal(t, []string{"aaaa"}, readPart(t, path, 0, 2))
	assert.Equal(t, []string{"bbbb"}, readPart(t, path, 1, 2))
}

func TestOpenRejectsBadPart(t *testing.T) {
	path, _ := writeLines(t, 3)
	_, err := Open(context.Background(), path, 0, 0)
	require.Error(t, err)
	_, err = Open(context.Background(), path, 3, 3)
	require.Error(t, err)
}

func TestBytesRead(t *testing.T) {
	path, _ := writeLines(t, 10)
	r, err := Open(context.Background(), path, 0, 1)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), r.BytesRead())
}

func TestRateLimitPassthrough(t *testing.T) {
	path, want := writeLines(t, 5)
	got := readPart(t, path, 0, 1, WithRateLimit(100<<20))
	assert.Equal(t, want, got)
}

func putCompressed(t *testing.T, mem *source.Memory, name string, plain []byte) {
	t.Helper()
	var buf bytes.Buffer
	switch {
	case strings.HasSuffix(name, ".gz"):
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write(plain)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	case strings.HasSuffix(name, ".zst"):
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = zw.Write(plain)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	case strings.HasSuffix(name, ".lz4"):
		zw := lz4.NewWriter(&buf)
		_, err := zw.Write(plain)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	default:
		t.Fatalf("unhandled name %q", name)
	}
	mem.Put(name, buf.Bytes())
}

func TestCompressedInputs(t *testing.T) {
	plain := []byte("alpha 1\nbeta 2\ngamma 3\n")
	mem := source.NewMemory()
	source.RegisterScheme("memsplit", mem)

	for _, name := range []string{"data.gz", "data.zst", "data.lz4"} {
		putCompressed(t, mem, name, plain)
		uri := "memsplit://" + name

		got := readPart(t, uri, 0, 4)
		assert.Equal(t, []string{"alpha 1", "beta 2", "gamma 3"}, got, name)

		// Compressed streams are not splittable; only part 0 has data.
		for part := uint32(1); part < 4; part++ {
			assert.Empty(t, readPart(t, uri, part, 4), "%s part %d", name, part)
		}
	}
}

func TestCompressedBytesReadCountsRawBytes(t *testing.T) {
	plain := bytes.Repeat([]byte("0123456789abcdef\n"), 4096)
	mem := source.NewMemory()
	source.RegisterScheme("memsplitgz", mem)
	putCompressed(t, mem, "big.gz", plain)

	r, err := Open(context.Background(), "memsplitgz://big.gz", 0, 1)
	require.NoError(t, err)
	defer r.Close()

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	// The counter sits under the decompressor, so it reports compressed
	// bytes: positive but far fewer than the plain size.
	raw := r.BytesRead()
	assert.Positive(t, raw)
	assert.Less(t, raw, int64(len(plain)))
}

func TestCountingReader(t *testing.T) {
	c := NewCountingReader(strings.NewReader("hello"))
	buf := make([]byte, 2)
	_, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.BytesRead())
	_, err = io.ReadAll(c)
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.BytesRead())
}
