package txagg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/emptyOVO/txagg/master"
	"github.com/emptyOVO/txagg/rank"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func getenvDefault(name, d string) string {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	return v
}

func getenvInt(name string, d int) int {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvBool(name string, d bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

// NewCommand builds the txagg root command. Flag defaults come from the
// environment when set.
func NewCommand() *cobra.Command {
	var (
		opts     Options
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "txagg",
		Short: "txagg ranks stores and products of a pipe-delimited transaction file",
		Long: `txagg splits a client_id|ticket_id|product_id|store_code|date|price file into
line-aligned chunks, aggregates every chunk in parallel and merges the partial
results into the top 50 stores by revenue and the top 100 products of every store.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)

			if opts.Input == "" {
				return &master.ConfigError{Field: "input", Reason: "--input (or TXAGG_INPUT) is required"}
			}
			input, err := filepath.Abs(opts.Input)
			if err != nil {
				return err
			}
			opts.Input = input

			res, err := RunJob(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stores=%d records=%d skipped=%d chunks=%d\n",
				res.Stats.Stores, res.Stats.Records, res.Stats.Skipped, len(res.Chunks))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.Input, "input", "i", os.Getenv("TXAGG_INPUT"), "Input transaction file")
	flags.StringVarP(&opts.OutputDir, "output", "o", getenvDefault("TXAGG_OUTPUT", "output"), "Report output directory")
	flags.IntVarP(&opts.Workers, "worker", "w", getenvInt("TXAGG_WORKERS", master.DefaultWorkers()), "Number of chunks scanned in parallel (0 or 1: single chunk)")
	flags.StringVar(&opts.StoreType, "store", getenvDefault("TXAGG_STORE", "file"), "Partial result store: mem|file|bolt")
	flags.StringVar(&opts.TmpDir, "tmp", os.Getenv("TXAGG_TMP"), "Partial result directory (default <output>/temp_results)")
	flags.BoolVarP(&opts.InRAM, "inRAM", "m", getenvBool("TXAGG_IN_RAM", false), "Keep partial results in RAM (/dev/shm)")
	flags.StringVar(&opts.RunID, "run-id", os.Getenv("TXAGG_RUN_ID"), "Run id naming the partial results (default: random)")
	flags.BoolVar(&opts.Resume, "resume", false, "Reuse partial results of an earlier run with the same --run-id")
	flags.BoolVar(&opts.KeepPartials, "keep-partials", false, "Do not delete partial results after combining")
	flags.IntVar(&opts.TopStores, "top-stores", rank.DefaultTopStores, "Number of stores in the revenue ranking")
	flags.IntVar(&opts.TopProducts, "top-products", rank.DefaultTopProducts, "Number of products per store")
	flags.StringVar(&opts.SinkType, "sink", getenvDefault("TXAGG_SINK", "csv"), "Report sink: csv|mysql|none")
	flags.StringVar(&logLevel, "log-level", getenvDefault("TXAGG_LOG_LEVEL", "info"), "Log level")

	flags.StringVar(&opts.DB.Host, "mysql-host", getenvDefault("MYSQL_HOST", "127.0.0.1"), "MySQL host")
	flags.IntVar(&opts.DB.Port, "mysql-port", getenvInt("MYSQL_PORT", 3306), "MySQL port")
	flags.StringVar(&opts.DB.User, "mysql-user", getenvDefault("MYSQL_USER", "root"), "MySQL user")
	flags.StringVar(&opts.DB.Database, "mysql-db", os.Getenv("MYSQL_DB"), "MySQL database")
	flags.BoolVar(&opts.MySQL.Replace, "mysql-replace", getenvBool("SINK_REPLACE", true), "Truncate report tables before import")
	opts.DB.Password = os.Getenv("MYSQL_PASSWORD")

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
