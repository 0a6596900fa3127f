// Package txagg aggregates a pipe-delimited transaction file into per-store
// revenue and product purchase rankings, scanning line-aligned chunks of the
// file in parallel.
package txagg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emptyOVO/txagg/batch"
	"github.com/emptyOVO/txagg/master"
	"github.com/emptyOVO/txagg/rank"
	"github.com/emptyOVO/txagg/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Options describes one end-to-end job: aggregate, rank, write reports.
type Options struct {
	Input     string
	OutputDir string
	Workers   int
	// StoreType is mem, file or bolt.
	StoreType    string
	TmpDir       string
	InRAM        bool
	RunID        string
	Resume       bool
	KeepPartials bool
	TopStores    int
	TopProducts  int
	SinkType     string
	DB           batch.DBConfig
	MySQL        batch.MySQLSinkConfig
}

func (o *Options) withDefaults() {
	if o.OutputDir == "" {
		o.OutputDir = "output"
	}
	if o.StoreType == "" {
		o.StoreType = "file"
	}
	if o.TmpDir == "" {
		if o.InRAM {
			o.TmpDir = store.DefaultDir(true)
		} else {
			o.TmpDir = filepath.Join(o.OutputDir, "temp_results")
		}
	}
	if o.TopStores == 0 {
		o.TopStores = rank.DefaultTopStores
	}
	if o.TopProducts == 0 {
		o.TopProducts = rank.DefaultTopProducts
	}
	if o.SinkType == "" {
		o.SinkType = "csv"
	}
	o.MySQL.WithDefaults()
}

// partialStore is a store plus its lifecycle: cleanup drops the run's
// partials, close releases the backing resources.
type partialStore struct {
	store.Store
	cleanup func() error
	close   func() error
}

func nop() error { return nil }

func openStore(o Options) (*partialStore, error) {
	switch o.StoreType {
	case "mem":
		return &partialStore{Store: store.NewMemStore(), cleanup: nop, close: nop}, nil
	case "file":
		fs, err := store.NewFileStore(o.TmpDir, o.RunID)
		if err != nil {
			return nil, err
		}
		log.Infof("[Store] Partials in %s, run %s", fs.Dir(), fs.RunID())
		return &partialStore{Store: fs, cleanup: fs.Cleanup, close: nop}, nil
	case "bolt":
		if err := os.MkdirAll(o.TmpDir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", o.TmpDir)
		}
		bs, err := store.OpenBoltStore(filepath.Join(o.TmpDir, "partials.db"), o.RunID)
		if err != nil {
			return nil, err
		}
		log.Infof("[Store] Partials in %s, run %s", o.TmpDir, bs.RunID())
		return &partialStore{Store: bs, cleanup: bs.Cleanup, close: bs.Close}, nil
	default:
		return nil, &master.ConfigError{Field: "store", Reason: fmt.Sprintf("unknown store type %q", o.StoreType)}
	}
}

// RunJob aggregates o.Input and writes the reports to the configured sink.
func RunJob(ctx context.Context, o Options) (*master.Result, error) {
	o.withDefaults()
	if o.Resume && o.RunID == "" {
		return nil, &master.ConfigError{Field: "run-id", Reason: "resume needs the run id of the earlier run"}
	}
	if o.Resume && o.StoreType == "mem" {
		return nil, &master.ConfigError{Field: "store", Reason: "resume needs a persistent store"}
	}
	sink, err := batch.NewSink(o.SinkType, o.OutputDir, o.DB, o.MySQL)
	if err != nil {
		return nil, &master.ConfigError{Field: "sink", Reason: err.Error()}
	}

	st, err := openStore(o)
	if err != nil {
		return nil, err
	}
	defer st.close()

	res, err := master.Run(ctx, master.Config{
		Input:       o.Input,
		Workers:     o.Workers,
		Store:       st,
		Resume:      o.Resume,
		TopStores:   o.TopStores,
		TopProducts: o.TopProducts,
	})
	if err != nil {
		// partials of a failed run stay in the store for --resume
		return nil, err
	}
	if !o.KeepPartials {
		if err := st.cleanup(); err != nil {
			log.WithError(err).Warn("[Store] Cleanup failed")
		}
	}

	if err := sink.Write(ctx, res); err != nil {
		return res, errors.Wrapf(err, "write %s reports", o.SinkType)
	}
	log.WithFields(log.Fields{
		"plan":    res.Stats.PlanTime,
		"map":     res.Stats.MapTime,
		"combine": res.Stats.CombineTime,
		"rank":    res.Stats.RankTime,
	}).Info("[Master] Job done")
	return res, nil
}
