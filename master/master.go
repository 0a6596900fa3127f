package master

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/emptyOVO/txagg/agg"
	"github.com/emptyOVO/txagg/rank"
	"github.com/emptyOVO/txagg/store"
	"github.com/emptyOVO/txagg/worker"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ConfigError rejects a job before any worker starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// Config describes one aggregation run over a single input file.
type Config struct {
	Input string
	// Workers is the number of chunks, each scanned by its own goroutine.
	// 0 and 1 both mean a single chunk covering the whole file.
	Workers int
	Store   store.Store
	// Resume skips chunks whose partial is already in Store. The store must
	// hold partials of the same input planned with the same Workers.
	Resume bool
	// TopStores and TopProducts bound the ranked views. 0 selects
	// rank.DefaultTopStores and rank.DefaultTopProducts.
	TopStores   int
	TopProducts int
}

// DefaultWorkers is the host parallelism.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

func (c *Config) withDefaults() {
	if c.TopStores == 0 {
		c.TopStores = rank.DefaultTopStores
	}
	if c.TopProducts == 0 {
		c.TopProducts = rank.DefaultTopProducts
	}
}

// validate checks the config and opens the input, so an unreadable input is
// reported as a ConfigError before any worker starts. The caller closes f.
func (c *Config) validate() (f *os.File, size int64, err error) {
	if c.Input == "" {
		return nil, 0, &ConfigError{Field: "input", Reason: "input path is required"}
	}
	if c.Workers < 0 {
		return nil, 0, &ConfigError{Field: "workers", Reason: fmt.Sprintf("must be >= 0, got %d", c.Workers)}
	}
	if c.Store == nil {
		return nil, 0, &ConfigError{Field: "store", Reason: "partial result store is required"}
	}
	if c.TopStores < 0 || c.TopProducts < 0 {
		return nil, 0, &ConfigError{Field: "top", Reason: "top-K sizes must not be negative"}
	}
	fi, err := os.Stat(c.Input)
	if err != nil {
		return nil, 0, &ConfigError{Field: "input", Reason: err.Error()}
	}
	if fi.IsDir() {
		return nil, 0, &ConfigError{Field: "input", Reason: c.Input + " is a directory"}
	}
	f, err = os.Open(c.Input)
	if err != nil {
		return nil, 0, &ConfigError{Field: "input", Reason: err.Error()}
	}
	return f, fi.Size(), nil
}

// Stats describes a finished run.
type Stats struct {
	Records     uint64
	Skipped     uint64
	Stores      int
	ChunksRun   int
	ChunksKept  int
	PlanTime    time.Duration
	MapTime     time.Duration
	CombineTime time.Duration
	RankTime    time.Duration
}

// Result is the output of a run, handed to the report sinks.
type Result struct {
	Chunks      []worker.ChunkSpec
	Global      *agg.Aggregate
	TopStores   []rank.StoreTotal
	TopProducts []rank.StoreProducts
	Stats       Stats
}

// Run plans the input into chunks, aggregates every chunk in parallel into
// cfg.Store, waits for all of them, then combines and ranks. Any chunk
// failure fails the whole run with that chunk's *worker.ChunkError; nothing
// is combined in that case.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg.withDefaults()
	f, size, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	res := &Result{}

	log.Info("[Master] Plan chunks")
	started := time.Now()
	chunks, err := Plan(f, size, cfg.Workers)
	f.Close()
	if err != nil {
		return nil, errors.Wrap(err, "plan input")
	}
	res.Chunks = chunks
	res.Stats.PlanTime = time.Since(started)
	log.Infof("[Master] %d chunks over %d bytes", len(chunks), size)

	started = time.Now()
	run, kept, err := runChunks(ctx, cfg, chunks)
	if err != nil {
		return nil, err
	}
	res.Stats.ChunksRun, res.Stats.ChunksKept = run, kept
	res.Stats.MapTime = time.Since(started)
	log.Infof("[Master] Map phase done: %d run, %d resumed", run, kept)

	started = time.Now()
	global, err := Combine(ctx, cfg.Store, len(chunks))
	if err != nil {
		return nil, err
	}
	res.Global = global
	res.Stats.CombineTime = time.Since(started)
	res.Stats.Records = global.Records()
	res.Stats.Skipped = global.Skipped
	res.Stats.Stores = global.Len()
	log.WithFields(log.Fields{
		"stores":  res.Stats.Stores,
		"records": res.Stats.Records,
		"skipped": res.Stats.Skipped,
	}).Info("[Master] Combine done")

	started = time.Now()
	res.TopStores = rank.TopStores(global, cfg.TopStores)
	res.TopProducts = rank.TopProducts(global, cfg.TopProducts)
	res.Stats.RankTime = time.Since(started)
	return res, nil
}

// runChunks starts one worker per chunk and blocks until all are done.
func runChunks(ctx context.Context, cfg Config, chunks []worker.ChunkSpec) (run int, kept int, err error) {
	todo := make([]worker.ChunkSpec, 0, len(chunks))
	for _, c := range chunks {
		if cfg.Resume {
			ok, err := cfg.Store.Has(ctx, c.Index)
			if err != nil {
				return 0, 0, &worker.ChunkError{Index: c.Index, Offset: c.Start, Op: "check partial", Err: err}
			}
			if ok {
				log.WithField("chunk", c.Index).Debug("[Master] Partial present, skipping chunk")
				kept++
				continue
			}
		}
		todo = append(todo, c)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range todo {
		wr := worker.New(i, cfg.Input, cfg.Store)
		c := c
		g.Go(func() error {
			return wr.Run(gctx, c)
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("[Master] Map phase failed")
		return 0, 0, err
	}
	return len(todo), kept, nil
}

// RunChunk re-runs a single chunk and replaces its partial in st. It is the
// unit of retry: a chunk depends only on its byte range.
func RunChunk(ctx context.Context, input string, chunk worker.ChunkSpec, st store.Store) error {
	return worker.New(int(chunk.Index), input, st).Run(ctx, chunk)
}
