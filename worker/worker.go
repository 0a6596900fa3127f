package worker

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/emptyOVO/txagg/agg"
	"github.com/emptyOVO/txagg/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MaxLineSize bounds a single input line.
const MaxLineSize = 1 << 20

const ctxCheckEvery = 4096

type State int

const (
	Idle State = iota
	Busy
)

// Worker scans chunks of one input file and stores their partial aggregates.
// A Worker runs one chunk at a time; several workers share nothing but the
// read-only input and the store, in which each chunk owns its own key.
type Worker struct {
	UUID  string
	ID    int
	input string
	store store.Store
	state State
	mux   sync.Mutex
}

func New(id int, input string, st store.Store) *Worker {
	return &Worker{
		UUID:  uuid.New().String(),
		ID:    id,
		input: input,
		store: st,
		state: Idle,
	}
}

// Run aggregates chunk and writes the partial result under chunk.Index.
// Exactly one Put happens per successful run, also when the chunk holds no
// valid line. Running the same chunk again overwrites the key with an
// identical aggregate.
func (wr *Worker) Run(ctx context.Context, chunk ChunkSpec) error {
	logger := log.WithFields(log.Fields{"worker": wr.ID, "chunk": chunk.Index})
	logger.Debugf("[Worker] Start %v", chunk)

	wr.setState(Busy)
	defer wr.setState(Idle)

	part, err := Aggregate(ctx, wr.input, chunk)
	if err != nil {
		return err
	}
	logger.Tracef("[Worker] %d stores, %d records, %d skipped", part.Len(), part.Records(), part.Skipped)

	if err := wr.store.Put(ctx, chunk.Index, part); err != nil {
		return chunkErr(chunk, chunk.Start, "put partial", err)
	}
	logger.Debug("[Worker] Finish chunk")
	return nil
}

func (wr *Worker) State() State {
	wr.mux.Lock()
	defer wr.mux.Unlock()
	return wr.state
}

func (wr *Worker) setState(s State) {
	wr.mux.Lock()
	wr.state = s
	wr.mux.Unlock()
}

// Aggregate scans the byte range of chunk in filename and folds every valid
// line into a fresh partial aggregate. Invalid lines only bump Skipped.
func Aggregate(ctx context.Context, filename string, chunk ChunkSpec) (*agg.Aggregate, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, chunkErr(chunk, chunk.Start, "open input", err)
	}
	defer f.Close()

	end := chunk.End
	if chunk.ToEOF() {
		fi, err := f.Stat()
		if err != nil {
			return nil, chunkErr(chunk, chunk.Start, "stat input", err)
		}
		end = fi.Size()
	}
	part := agg.New()
	if end <= chunk.Start {
		return part, nil
	}

	offset := chunk.Start
	sc := bufio.NewScanner(io.NewSectionReader(f, chunk.Start, end-chunk.Start))
	sc.Buffer(make([]byte, 64*1024), MaxLineSize)
	sc.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := bufio.ScanLines(data, atEOF)
		offset += int64(advance)
		return advance, token, err
	})

	var lines int
	for sc.Scan() {
		lines++
		if lines%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, chunkErr(chunk, offset, "scan", err)
			}
		}
		rec, ok := agg.ParseLine(sc.Bytes())
		if !ok {
			part.Skipped++
			continue
		}
		part.Add(rec)
	}
	if err := sc.Err(); err != nil {
		return nil, chunkErr(chunk, offset, "scan", errors.Wrapf(err, "read %s", filename))
	}
	return part, nil
}
