package rank

import (
	"fmt"
	"testing"

	"github.com/emptyOVO/txagg/agg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopStoresOrder(t *testing.T) {
	g := agg.New()
	for _, r := range []agg.Record{
		{StoreCode: "C", ProductID: "p", Price: 18.44},
		{StoreCode: "A", ProductID: "p", Price: 30},
		{StoreCode: "D", ProductID: "p", Price: 9.25},
		{StoreCode: "B", ProductID: "p", Price: 20.25},
		{StoreCode: "A", ProductID: "q", Price: 8.5},
	} {
		g.Add(r)
	}

	got := TopStores(g, DefaultTopStores)
	require.Len(t, got, 4)
	codes := make([]string, len(got))
	for i, st := range got {
		codes[i] = st.StoreCode
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, codes)
	assert.InDelta(t, 38.50, got[0].TotalPrice, 1e-9)
	assert.InDelta(t, 20.25, got[1].TotalPrice, 1e-9)
	assert.InDelta(t, 18.44, got[2].TotalPrice, 1e-9)
	assert.InDelta(t, 9.25, got[3].TotalPrice, 1e-9)
}

func TestTopStoresTruncatesAndBreaksTiesByFirstSeen(t *testing.T) {
	g := agg.New()
	for i := 0; i < 60; i++ {
		g.Add(agg.Record{StoreCode: fmt.Sprintf("S%02d", i), ProductID: "p", Price: float64(i % 3)})
	}

	got := TopStores(g, 50)
	require.Len(t, got, 50)
	assert.Equal(t, "S02", got[0].StoreCode)
	assert.Equal(t, "S05", got[1].StoreCode)
	assert.Equal(t, 2.0, got[19].TotalPrice)
	assert.Equal(t, "S01", got[20].StoreCode)
}

func TestTopProductsTruncation(t *testing.T) {
	g := agg.New()
	s := g.Store("S1")
	// p000 has 1 purchase up to p149 with 150; "tie" ties with p074 on 75
	for i := 0; i < 150; i++ {
		s.AddProduct(fmt.Sprintf("p%03d", i), uint64(i+1))
	}
	s.AddProduct("tie", 75)

	view := TopProducts(g, DefaultTopProducts)
	require.Len(t, view, 1)
	got := view[0].Products
	require.Len(t, got, 100)
	assert.Equal(t, agg.ProductCount{ProductID: "p149", Count: 150}, got[0])

	// p051..p149 (counts 52..150) plus "tie" fill the 100 slots
	assert.Equal(t, agg.ProductCount{ProductID: "p051", Count: 52}, got[99])
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Count, got[i].Count)
	}

	var tieAt, p074At = -1, -1
	for i, p := range got {
		switch p.ProductID {
		case "tie":
			tieAt = i
		case "p074":
			p074At = i
		}
	}
	require.NotEqual(t, -1, tieAt)
	assert.Less(t, p074At, tieAt, "first-seen product wins the tie")

	// ranking copies, the aggregate keeps first-seen order
	assert.Equal(t, "p000", s.Products()[0].ProductID)
}

func TestTopProductsFewerThanK(t *testing.T) {
	g := agg.New()
	g.Add(agg.Record{StoreCode: "S", ProductID: "a", Price: 1})
	g.Add(agg.Record{StoreCode: "S", ProductID: "b", Price: 1})
	g.Add(agg.Record{StoreCode: "S", ProductID: "b", Price: 1})

	got := TopProducts(g, DefaultTopProducts)
	require.Len(t, got, 1)
	assert.Equal(t, []agg.ProductCount{{ProductID: "b", Count: 2}, {ProductID: "a", Count: 1}}, got[0].Products)
}

func TestTopStoresWithoutLimit(t *testing.T) {
	g := agg.New()
	for i := 0; i < DefaultTopStores+10; i++ {
		g.Add(agg.Record{StoreCode: fmt.Sprintf("S%02d", i), ProductID: "p", Price: float64(i)})
	}

	assert.Len(t, TopStores(g, 0), DefaultTopStores+10)
	assert.Len(t, TopStores(g, DefaultTopStores), DefaultTopStores)
	s, _ := g.Lookup("S00")
	assert.Len(t, TopProductsForStore(s, 0), 1)
}

func TestEmptyAggregate(t *testing.T) {
	assert.Empty(t, TopStores(agg.New(), 50))
	assert.Empty(t, TopProducts(agg.New(), 100))
}
