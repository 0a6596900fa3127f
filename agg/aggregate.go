package agg

// ProductCount is the number of purchases of one product in one store.
type ProductCount struct {
	ProductID string
	Count     uint64
}

// StoreAggregate accumulates revenue and product counts for one store.
// Products are kept in first-seen order.
type StoreAggregate struct {
	StoreCode  string
	TotalPrice float64

	products []ProductCount
	index    map[string]int
}

func newStoreAggregate(code string) *StoreAggregate {
	return &StoreAggregate{
		StoreCode: code,
		index:     make(map[string]int),
	}
}

// AddProduct increments the count of productID by n.
func (s *StoreAggregate) AddProduct(productID string, n uint64) {
	if i, ok := s.index[productID]; ok {
		s.products[i].Count += n
		return
	}
	s.index[productID] = len(s.products)
	s.products = append(s.products, ProductCount{ProductID: productID, Count: n})
}

// Count returns the purchase count of productID, 0 when unseen.
func (s *StoreAggregate) Count(productID string) uint64 {
	if i, ok := s.index[productID]; ok {
		return s.products[i].Count
	}
	return 0
}

// Products returns the product counts in first-seen order. The slice is
// shared with the aggregate and must not be modified.
func (s *StoreAggregate) Products() []ProductCount {
	return s.products
}

// Aggregate maps store codes to their StoreAggregate. It is used both for
// the partial result of one chunk and for the global reduction. Stores are
// kept in first-seen order so ranking ties resolve the same way on every run.
type Aggregate struct {
	// Skipped counts lines that failed to parse.
	Skipped uint64

	stores []*StoreAggregate
	index  map[string]int
}

// New returns an empty aggregate, the identity element of Merge.
func New() *Aggregate {
	return &Aggregate{index: make(map[string]int)}
}

// Store returns the aggregate for code, creating an empty one on first use.
func (a *Aggregate) Store(code string) *StoreAggregate {
	if i, ok := a.index[code]; ok {
		return a.stores[i]
	}
	s := newStoreAggregate(code)
	a.index[code] = len(a.stores)
	a.stores = append(a.stores, s)
	return s
}

// Lookup returns the aggregate for code without creating it.
func (a *Aggregate) Lookup(code string) (*StoreAggregate, bool) {
	i, ok := a.index[code]
	if !ok {
		return nil, false
	}
	return a.stores[i], true
}

// Stores returns all store aggregates in first-seen order.
func (a *Aggregate) Stores() []*StoreAggregate {
	return a.stores
}

// Len is the number of distinct stores.
func (a *Aggregate) Len() int {
	return len(a.stores)
}

// Add folds one valid record into the aggregate.
func (a *Aggregate) Add(rec Record) {
	s := a.Store(rec.StoreCode)
	s.TotalPrice += rec.Price
	s.AddProduct(rec.ProductID, 1)
}

// Merge folds other into a. Merge is associative and commutative up to
// store/product ordering and floating point rounding of the totals.
func (a *Aggregate) Merge(other *Aggregate) {
	if other == nil {
		return
	}
	a.Skipped += other.Skipped
	for _, src := range other.stores {
		dst := a.Store(src.StoreCode)
		dst.TotalPrice += src.TotalPrice
		for _, p := range src.products {
			dst.AddProduct(p.ProductID, p.Count)
		}
	}
}

// Records is the number of valid records folded into the aggregate.
func (a *Aggregate) Records() uint64 {
	var n uint64
	for _, s := range a.stores {
		for _, p := range s.products {
			n += p.Count
		}
	}
	return n
}

// Empty reports whether no record has been added.
func (a *Aggregate) Empty() bool {
	return len(a.stores) == 0
}
