package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/emptyOVO/txagg/batch/mysql_batch"
	"github.com/emptyOVO/txagg/master"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	TopStoresFile     = "top-50-stores.csv"
	TopProductsDir    = "top-products-by-store"
	topProductsPrefix = "top-100-products-store-"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// Sink hands the ranked views of a finished run to an output system.
type Sink interface {
	Write(ctx context.Context, res *master.Result) error
}

// NewSink builds the sink named by typ: csv, mysql or none.
func NewSink(typ string, outputDir string, db DBConfig, cfg MySQLSinkConfig) (Sink, error) {
	switch typ {
	case "", "csv":
		return CSVSink{Dir: outputDir}, nil
	case "mysql":
		return MySQLSink{DB: db, Config: cfg}, nil
	case "none":
		return nopSink{}, nil
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", typ)
	}
}

type nopSink struct{}

func (nopSink) Write(context.Context, *master.Result) error { return nil }

// CSVSink writes the top stores file and one top products file per store
// under Dir.
type CSVSink struct {
	Dir string
}

func (s CSVSink) Write(ctx context.Context, res *master.Result) error {
	productsDir := filepath.Join(s.Dir, TopProductsDir)
	if err := os.MkdirAll(productsDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", productsDir)
	}

	rows := make([][]string, 0, len(res.TopStores))
	for _, st := range res.TopStores {
		rows = append(rows, []string{st.StoreCode, strconv.FormatFloat(st.TotalPrice, 'f', -1, 64)})
	}
	if err := writeCSV(filepath.Join(s.Dir, TopStoresFile), []string{"store_code", "total_ca"}, rows); err != nil {
		return err
	}

	used := make(map[string]struct{}, len(res.TopProducts))
	for _, sp := range res.TopProducts {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows = rows[:0]
		for _, p := range sp.Products {
			rows = append(rows, []string{p.ProductID, strconv.FormatUint(p.Count, 10)})
		}
		name := uniqueFileName(used, StoreFileName(sp.StoreCode))
		if name != StoreFileName(sp.StoreCode) {
			log.Warnf("[Sink] Store %q collides with another store after sanitizing, writing %s", sp.StoreCode, name)
		}
		fname := filepath.Join(productsDir, name)
		if err := writeCSV(fname, []string{"product_id", "number_of_products"}, rows); err != nil {
			return err
		}
	}
	log.Infof("[Sink] Wrote %d store reports to %s", len(res.TopProducts), s.Dir)
	return nil
}

// StoreFileName is the top products file name of a store. Characters that
// are unsafe in file names are replaced by '_'.
func StoreFileName(storeCode string) string {
	return topProductsPrefix + unsafeFileChars.ReplaceAllString(storeCode, "_") + ".csv"
}

// uniqueFileName returns name, or name with a -2, -3, ... suffix when an
// earlier store already took it, and records the result in used.
func uniqueFileName(used map[string]struct{}, name string) string {
	out := name
	base := strings.TrimSuffix(name, ".csv")
	for i := 2; ; i++ {
		if _, ok := used[out]; !ok {
			break
		}
		out = fmt.Sprintf("%s-%d.csv", base, i)
	}
	used[out] = struct{}{}
	return out
}

func writeCSV(fname string, header []string, rows [][]string) error {
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrapf(err, "create %s", fname)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrapf(err, "write %s", fname)
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "write %s", fname)
	}
	return f.Close()
}

// MySQLSink writes the ranked views into two MySQL tables.
type MySQLSink struct {
	DB     DBConfig
	Config MySQLSinkConfig
}

func (s MySQLSink) Write(ctx context.Context, res *master.Result) error {
	db, err := openDB(ctx, s.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := mysql_batch.ImportReports(ctx, db, s.Config, res.TopStores, res.TopProducts); err != nil {
		return err
	}
	log.Infof("[Sink] Imported %d stores into MySQL %s", len(res.TopStores), s.DB.Database)
	return nil
}
