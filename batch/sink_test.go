package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/emptyOVO/txagg/agg"
	"github.com/emptyOVO/txagg/master"
	"github.com/emptyOVO/txagg/rank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSinkWritesReports(t *testing.T) {
	dir := t.TempDir()
	res := &master.Result{
		TopStores: []rank.StoreTotal{{StoreCode: "A", TotalPrice: 38.5}, {StoreCode: "B", TotalPrice: 20.25}},
		TopProducts: []rank.StoreProducts{
			{StoreCode: "A", Products: []agg.ProductCount{{ProductID: "p1", Count: 3}, {ProductID: "p2", Count: 1}}},
			{StoreCode: "B/1", Products: []agg.ProductCount{{ProductID: "p9", Count: 2}}},
		},
	}

	sink, err := NewSink("csv", dir, DBConfig{}, MySQLSinkConfig{})
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), res))

	b, err := os.ReadFile(filepath.Join(dir, TopStoresFile))
	require.NoError(t, err)
	assert.Equal(t, "store_code,total_ca\nA,38.5\nB,20.25\n", string(b))

	b, err = os.ReadFile(filepath.Join(dir, TopProductsDir, "top-100-products-store-A.csv"))
	require.NoError(t, err)
	assert.Equal(t, "product_id,number_of_products\np1,3\np2,1\n", string(b))

	b, err = os.ReadFile(filepath.Join(dir, TopProductsDir, StoreFileName("B/1")))
	require.NoError(t, err)
	assert.Equal(t, "product_id,number_of_products\np9,2\n", string(b))
}

func TestCSVSinkKeepsCollidingStoreCodesApart(t *testing.T) {
	dir := t.TempDir()
	res := &master.Result{
		TopProducts: []rank.StoreProducts{
			{StoreCode: "A/1", Products: []agg.ProductCount{{ProductID: "p1", Count: 4}}},
			{StoreCode: "A_1", Products: []agg.ProductCount{{ProductID: "p2", Count: 7}}},
		},
	}

	require.NoError(t, CSVSink{Dir: dir}.Write(context.Background(), res))

	files, err := filepath.Glob(filepath.Join(dir, TopProductsDir, "*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 2)

	b, err := os.ReadFile(filepath.Join(dir, TopProductsDir, "top-100-products-store-A_1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "product_id,number_of_products\np1,4\n", string(b))
	b, err = os.ReadFile(filepath.Join(dir, TopProductsDir, "top-100-products-store-A_1-2.csv"))
	require.NoError(t, err)
	assert.Equal(t, "product_id,number_of_products\np2,7\n", string(b))
}

func TestStoreFileName(t *testing.T) {
	assert.Equal(t, "top-100-products-store-S_01.csv", StoreFileName("S/01"))
	assert.Equal(t, "top-100-products-store-abc.csv", StoreFileName("abc"))
}

func TestNewSinkUnknown(t *testing.T) {
	_, err := NewSink("kafka", "", DBConfig{}, MySQLSinkConfig{})
	assert.Error(t, err)

	s, err := NewSink("none", "", DBConfig{}, MySQLSinkConfig{})
	require.NoError(t, err)
	assert.NoError(t, s.Write(context.Background(), &master.Result{}))
}

func TestDSN(t *testing.T) {
	c := DBConfig{User: "u", Password: "p", Database: "d", Params: map[string]string{"timeout": "5s"}}
	assert.Equal(t, "u:p@tcp(127.0.0.1:3306)/d?charset=utf8mb4&parseTime=true&timeout=5s", c.dsn())
}

func TestOpenDBRequiresUserAndDatabase(t *testing.T) {
	_, err := openDB(context.Background(), DBConfig{Database: "d"})
	assert.Error(t, err)
	_, err = openDB(context.Background(), DBConfig{User: "u"})
	assert.Error(t, err)
}
