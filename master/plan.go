package master

import (
	"bytes"
	"io"

	"github.com/emptyOVO/txagg/worker"
	"github.com/pkg/errors"
)

const scanBlock = 4096

// Plan splits an input of size bytes into n line-aligned chunks. The header
// line is excluded from chunk 0, and the last chunk runs to EOF so it absorbs
// the remainder of size/n. Chunks may be empty when lines are longer than
// size/n. n < 1 is treated as 1; an empty input yields a single empty chunk.
func Plan(r io.ReaderAt, size int64, n int) ([]worker.ChunkSpec, error) {
	if n < 1 {
		n = 1
	}
	if size <= 0 {
		return []worker.ChunkSpec{{Index: 0, Start: 0, End: worker.EOF}}, nil
	}

	headerEnd, err := nextLineStart(r, 0, size)
	if err != nil {
		return nil, errors.Wrap(err, "skip header")
	}

	step := size / int64(n)
	bounds := make([]int64, n)
	bounds[0] = headerEnd
	for i := 1; i < n; i++ {
		b, err := nextLineStart(r, int64(i)*step, size)
		if err != nil {
			return nil, errors.Wrapf(err, "align boundary %d", i)
		}
		if b < bounds[i-1] {
			b = bounds[i-1]
		}
		bounds[i] = b
	}

	chunks := make([]worker.ChunkSpec, n)
	for i := range chunks {
		end := worker.EOF
		if i < n-1 {
			end = bounds[i+1]
		}
		chunks[i] = worker.ChunkSpec{Index: uint32(i), Start: bounds[i], End: end}
	}
	return chunks, nil
}

// nextLineStart returns the offset of the first line starting at or after
// pos: pos itself when the byte before it is a newline, otherwise the byte
// after the next newline, or size when there is none. pos == 0 is the start
// of the header, so it always advances past the first newline.
func nextLineStart(r io.ReaderAt, pos int64, size int64) (int64, error) {
	from := pos - 1
	if pos == 0 {
		from = 0
	}
	buf := make([]byte, scanBlock)
	for off := from; off < size; {
		n, err := r.ReadAt(buf, off)
		if n > 0 {
			if i := bytes.IndexByte(buf[:n], '\n'); i >= 0 {
				return off + int64(i) + 1, nil
			}
			off += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return size, nil
}
