package worker

import "fmt"

// EOF marks a chunk that extends to the end of the input.
const EOF int64 = -1

// ChunkSpec is the half-open byte range [Start, End) of the input owned by
// one worker. Start is always the first byte of a line.
type ChunkSpec struct {
	Index uint32
	Start int64
	End   int64
}

// ToEOF reports whether the chunk runs to the end of the file.
func (c ChunkSpec) ToEOF() bool {
	return c.End == EOF
}

func (c ChunkSpec) String() string {
	if c.ToEOF() {
		return fmt.Sprintf("chunk-%d[%d:EOF)", c.Index, c.Start)
	}
	return fmt.Sprintf("chunk-%d[%d:%d)", c.Index, c.Start, c.End)
}

// ChunkError is a fatal failure of one chunk: reading the input or
// storing/loading its partial result.
type ChunkError struct {
	Index  uint32
	Offset int64
	Op     string
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %s at offset %d: %v", e.Index, e.Op, e.Offset, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

func chunkErr(chunk ChunkSpec, offset int64, op string, err error) error {
	return &ChunkError{Index: chunk.Index, Offset: offset, Op: op, Err: err}
}
