package mysql_batch

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	queries []string
	args    [][]interface{}
}

func (r *recordingExecer) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
	return nil, nil
}

func TestInsertRowsBatches(t *testing.T) {
	ex := &recordingExecer{}
	rows := [][]interface{}{
		{"S1", 10.5, 1},
		{"S2", 8.0, 2},
		{"S3", 1.25, 3},
	}

	require.NoError(t, insertRows(context.Background(), ex, "`top_stores`", []string{"store_code", "total_price", "ranking"}, rows, 2))

	require.Len(t, ex.queries, 2)
	assert.True(t, strings.HasPrefix(ex.queries[0], "INSERT INTO `top_stores` (store_code, total_price, ranking) VALUES (?, ?, ?),(?, ?, ?) ON DUPLICATE KEY UPDATE"))
	assert.Contains(t, ex.queries[0], "total_price=VALUES(total_price)")
	assert.Equal(t, []interface{}{"S1", 10.5, 1, "S2", 8.0, 2}, ex.args[0])
	assert.Equal(t, []interface{}{"S3", 1.25, 3}, ex.args[1])
}

func TestInsertRowsNothingToDo(t *testing.T) {
	ex := &recordingExecer{}
	require.NoError(t, insertRows(context.Background(), ex, "`t`", []string{"a"}, nil, 10))
	assert.Empty(t, ex.queries)
}

func TestQuoteIdentifier(t *testing.T) {
	q, err := quoteIdentifier("top_stores")
	require.NoError(t, err)
	assert.Equal(t, "`top_stores`", q)

	_, err = quoteIdentifier("top; DROP TABLE x")
	assert.Error(t, err)
}

func TestSinkConfigDefaults(t *testing.T) {
	var c SinkConfig
	c.WithDefaults()
	assert.Equal(t, "top_stores", c.StoresTable)
	assert.Equal(t, "top_products", c.ProductsTable)
	assert.Equal(t, 2000, c.BatchSize)
}
