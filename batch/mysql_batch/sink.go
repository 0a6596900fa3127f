package mysql_batch

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/emptyOVO/txagg/rank"
	"github.com/pkg/errors"
)

// Execer is the part of *sql.Tx the row loader needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ImportReports writes both ranked views in one transaction. With Replace the
// tables are truncated first, otherwise rows are upserted by their key.
func ImportReports(ctx context.Context, db *sql.DB, cfg SinkConfig, stores []rank.StoreTotal, products []rank.StoreProducts) error {
	cfg.WithDefaults()

	storesTable, err := quoteIdentifier(cfg.StoresTable)
	if err != nil {
		return err
	}
	productsTable, err := quoteIdentifier(cfg.ProductsTable)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  store_code VARCHAR(255) NOT NULL,
  total_price DOUBLE NOT NULL,
  ranking INT NOT NULL,
  PRIMARY KEY (store_code)
)`, storesTable)); err != nil {
		return errors.Wrapf(err, "create %s", storesTable)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  store_code VARCHAR(255) NOT NULL,
  product_id VARCHAR(255) NOT NULL,
  cnt BIGINT UNSIGNED NOT NULL,
  ranking INT NOT NULL,
  PRIMARY KEY (store_code, product_id)
)`, productsTable)); err != nil {
		return errors.Wrapf(err, "create %s", productsTable)
	}

	if cfg.Replace {
		for _, table := range []string{storesTable, productsTable} {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`TRUNCATE TABLE %s`, table)); err != nil {
				return errors.Wrapf(err, "truncate %s", table)
			}
		}
	}

	storeRows := make([][]interface{}, 0, len(stores))
	for i, s := range stores {
		storeRows = append(storeRows, []interface{}{s.StoreCode, s.TotalPrice, i + 1})
	}
	if err := insertRows(ctx, tx, storesTable, []string{"store_code", "total_price", "ranking"}, storeRows, cfg.BatchSize); err != nil {
		return err
	}

	var productRows [][]interface{}
	for _, sp := range products {
		for i, p := range sp.Products {
			productRows = append(productRows, []interface{}{sp.StoreCode, p.ProductID, p.Count, i + 1})
		}
	}
	if err := insertRows(ctx, tx, productsTable, []string{"store_code", "product_id", "cnt", "ranking"}, productRows, cfg.BatchSize); err != nil {
		return err
	}

	return tx.Commit()
}

// insertRows upserts rows in multi-row statements of at most batchSize rows.
func insertRows(ctx context.Context, tx Execer, table string, cols []string, rows [][]interface{}, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 2000
	}
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	updates := make([]string, 0, len(cols))
	for _, c := range cols {
		updates = append(updates, fmt.Sprintf("%s=VALUES(%s)", c, c))
	}

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		valueSQL := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*len(cols))
		for _, row := range rows[start:end] {
			valueSQL = append(valueSQL, placeholder)
			args = append(args, row...)
		}
		sqlStr := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON DUPLICATE KEY UPDATE %s",
			table, strings.Join(cols, ", "), strings.Join(valueSQL, ","), strings.Join(updates, ", "))
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return errors.Wrapf(err, "insert into %s", table)
		}
	}
	return nil
}
