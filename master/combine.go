package master

import (
	"context"

	"github.com/emptyOVO/txagg/agg"
	"github.com/emptyOVO/txagg/store"
	"github.com/emptyOVO/txagg/worker"
	log "github.com/sirupsen/logrus"
)

// Combine folds the partials of chunks 0..n-1 into one global aggregate.
// A missing partial contributes nothing. Chunks are folded in index order,
// so stores and products keep the order of their first line in the file
// whatever n was.
func Combine(ctx context.Context, st store.Store, n int) (*agg.Aggregate, error) {
	global := agg.New()
	for i := 0; i < n; i++ {
		part, ok, err := st.Get(ctx, uint32(i))
		if err != nil {
			return nil, &worker.ChunkError{Index: uint32(i), Offset: -1, Op: "get partial", Err: err}
		}
		if !ok {
			log.WithField("chunk", i).Debug("[Master] No partial result, treating as empty")
			continue
		}
		global.Merge(part)
	}
	return global, nil
}
