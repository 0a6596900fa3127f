// Package rank builds the top-K report views from a global aggregate.
package rank

import (
	"sort"

	"github.com/emptyOVO/txagg/agg"
)

const (
	DefaultTopStores   = 50
	DefaultTopProducts = 100
)

// StoreTotal is one row of the top stores view.
type StoreTotal struct {
	StoreCode  string
	TotalPrice float64
}

// StoreProducts is the top products view of one store.
type StoreProducts struct {
	StoreCode string
	Products  []agg.ProductCount
}

// TopStores returns the k stores with the highest total, descending. Equal
// totals keep the aggregate's store order. k <= 0 applies no limit; master.Run
// never passes such a k, it replaces 0 with DefaultTopStores.
func TopStores(g *agg.Aggregate, k int) []StoreTotal {
	out := make([]StoreTotal, 0, g.Len())
	for _, s := range g.Stores() {
		out = append(out, StoreTotal{StoreCode: s.StoreCode, TotalPrice: s.TotalPrice})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalPrice > out[j].TotalPrice
	})
	return truncate(out, k)
}

// TopProductsForStore returns the k most purchased products of s, ties in
// first-seen order. k <= 0 applies no limit. The aggregate is not modified.
func TopProductsForStore(s *agg.StoreAggregate, k int) []agg.ProductCount {
	out := append([]agg.ProductCount(nil), s.Products()...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return truncate(out, k)
}

// TopProducts returns the top products view of every store, in the
// aggregate's store order.
func TopProducts(g *agg.Aggregate, k int) []StoreProducts {
	out := make([]StoreProducts, 0, g.Len())
	for _, s := range g.Stores() {
		out = append(out, StoreProducts{
			StoreCode: s.StoreCode,
			Products:  TopProductsForStore(s, k),
		})
	}
	return out
}

func truncate[T any](s []T, k int) []T {
	if k > 0 && len(s) > k {
		return s[:k]
	}
	return s
}
