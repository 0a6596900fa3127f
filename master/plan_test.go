package master

import (
	"bytes"
	"strings"
	"testing"

	"github.com/emptyOVO/txagg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "client_id|ticket_id|product_id|store_code|date|price\n"

func chunkBytes(data []byte, c worker.ChunkSpec) []byte {
	end := int64(len(data))
	if !c.ToEOF() {
		end = c.End
	}
	return data[c.Start:end]
}

func TestPlanAlignsToLineStarts(t *testing.T) {
	data := []byte(header +
		"c1|t1|p1|S1|d|1.0\n" +
		"c2|t2|p2|S2|d|2.0\n" +
		"c3|t3|p3|S3|d|3.0\n" +
		"c4|t4|p4|S1|d|4.0\n")

	for n := 1; n <= 8; n++ {
		chunks, err := Plan(bytes.NewReader(data), int64(len(data)), n)
		require.NoError(t, err)
		require.Len(t, chunks, n)

		assert.Equal(t, int64(len(header)), chunks[0].Start, "header is skipped")
		assert.True(t, chunks[n-1].ToEOF())

		var joined []byte
		for i, c := range chunks {
			assert.Equal(t, uint32(i), c.Index)
			if c.Start > 0 {
				assert.Equal(t, byte('\n'), data[c.Start-1], "chunk %v starts mid-line", c)
			}
			if i > 0 {
				assert.Equal(t, chunks[i-1].End, c.Start, "chunks must be contiguous")
			}
			joined = append(joined, chunkBytes(data, c)...)
		}
		assert.Equal(t, string(data[len(header):]), string(joined), "n=%d", n)
	}
}

func TestPlanNominalBoundaryInsideLine(t *testing.T) {
	long := "c9|t9|" + strings.Repeat("x", 40) + "|S9|d|9.0\n"
	data := []byte(header + long + "c1|t1|p1|S1|d|1.0\n")
	size := int64(len(data))

	// with two chunks the nominal boundary size/2 falls inside the long line
	mid := size / 2
	require.Greater(t, mid, int64(len(header)))
	require.Less(t, mid, int64(len(header)+len(long)-1))

	chunks, err := Plan(bytes.NewReader(data), size, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(len(header)+len(long)), chunks[0].End)
	assert.Equal(t, long, string(chunkBytes(data, chunks[0])))
	assert.Equal(t, "c1|t1|p1|S1|d|1.0\n", string(chunkBytes(data, chunks[1])))
}

func TestPlanKeepsBoundaryAlreadyAtLineStart(t *testing.T) {
	// header and both lines are 10 bytes, so size/3 lands on line starts
	data := []byte("h|h|h|h|h\n" + "a|b|c|d|1\n" + "e|f|g|h|2\n")
	chunks, err := Plan(bytes.NewReader(data), int64(len(data)), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(10), chunks[0].Start)
	assert.Equal(t, int64(10), chunks[0].End, "chunk 0 only had the header")
	assert.Equal(t, int64(10), chunks[1].Start)
	assert.Equal(t, int64(20), chunks[1].End)
	assert.Equal(t, int64(20), chunks[2].Start)
}

func TestPlanDegenerate(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		chunks, err := Plan(bytes.NewReader(nil), 0, 4)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, worker.ChunkSpec{Index: 0, Start: 0, End: worker.EOF}, chunks[0])
	})
	t.Run("zero workers", func(t *testing.T) {
		data := []byte(header + "c1|t1|p1|S1|d|1.0\n")
		chunks, err := Plan(bytes.NewReader(data), int64(len(data)), 0)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, int64(len(header)), chunks[0].Start)
		assert.True(t, chunks[0].ToEOF())
	})
	t.Run("header only without newline", func(t *testing.T) {
		data := []byte("client_id|ticket_id")
		chunks, err := Plan(bytes.NewReader(data), int64(len(data)), 3)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		for _, c := range chunks {
			assert.Empty(t, chunkBytes(data, c))
		}
	})
	t.Run("more workers than bytes", func(t *testing.T) {
		data := []byte("h\na|b|c|d|e|1\n")
		chunks, err := Plan(bytes.NewReader(data), int64(len(data)), 64)
		require.NoError(t, err)
		require.Len(t, chunks, 64)
		var joined []byte
		for _, c := range chunks {
			joined = append(joined, chunkBytes(data, c)...)
		}
		assert.Equal(t, "a|b|c|d|e|1\n", string(joined))
	})
}
