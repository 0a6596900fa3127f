package store

import (
	"math"

	"github.com/emptyOVO/txagg/agg"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Partial aggregates are encoded in protobuf wire format:
//
//	message Aggregate { repeated Store stores = 1; uint64 skipped = 2; }
//	message Store     { string code = 1; double total = 2; repeated Product products = 3; }
//	message Product   { string id = 1; uint64 count = 2; }
//
// Stores and products are written in first-seen order, which Decode keeps.
const (
	fieldAggStores  protowire.Number = 1
	fieldAggSkipped protowire.Number = 2

	fieldStoreCode     protowire.Number = 1
	fieldStoreTotal    protowire.Number = 2
	fieldStoreProducts protowire.Number = 3

	fieldProductID    protowire.Number = 1
	fieldProductCount protowire.Number = 2
)

// ErrCorrupt is returned for a blob that is not a valid encoded aggregate.
var ErrCorrupt = errors.New("corrupt partial aggregate")

// Encode serializes a. A nil aggregate encodes like an empty one.
func Encode(a *agg.Aggregate) []byte {
	if a == nil {
		return []byte{}
	}
	b := make([]byte, 0, 64*a.Len())
	var sb, pb []byte
	for _, s := range a.Stores() {
		sb = sb[:0]
		sb = protowire.AppendTag(sb, fieldStoreCode, protowire.BytesType)
		sb = protowire.AppendString(sb, s.StoreCode)
		sb = protowire.AppendTag(sb, fieldStoreTotal, protowire.Fixed64Type)
		sb = protowire.AppendFixed64(sb, math.Float64bits(s.TotalPrice))
		for _, p := range s.Products() {
			pb = pb[:0]
			pb = protowire.AppendTag(pb, fieldProductID, protowire.BytesType)
			pb = protowire.AppendString(pb, p.ProductID)
			pb = protowire.AppendTag(pb, fieldProductCount, protowire.VarintType)
			pb = protowire.AppendVarint(pb, p.Count)

			sb = protowire.AppendTag(sb, fieldStoreProducts, protowire.BytesType)
			sb = protowire.AppendBytes(sb, pb)
		}
		b = protowire.AppendTag(b, fieldAggStores, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}
	if a.Skipped > 0 {
		b = protowire.AppendTag(b, fieldAggSkipped, protowire.VarintType)
		b = protowire.AppendVarint(b, a.Skipped)
	}
	return b
}

// Decode parses a blob written by Encode. Unknown fields are skipped.
func Decode(b []byte) (*agg.Aggregate, error) {
	a := agg.New()
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, corrupt(n)
		}
		b = b[n:]
		switch {
		case num == fieldAggStores && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, corrupt(n)
			}
			if err := decodeStore(a, v); err != nil {
				return nil, err
			}
			b = b[n:]
		case num == fieldAggSkipped && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, corrupt(n)
			}
			a.Skipped = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, corrupt(n)
			}
			b = b[n:]
		}
	}
	return a, nil
}

type productEntry struct {
	id    string
	count uint64
}

func decodeStore(a *agg.Aggregate, b []byte) error {
	var (
		code     string
		total    float64
		products []productEntry
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return corrupt(n)
		}
		b = b[n:]
		switch {
		case num == fieldStoreCode && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return corrupt(n)
			}
			code = v
			b = b[n:]
		case num == fieldStoreTotal && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return corrupt(n)
			}
			total = math.Float64frombits(v)
			b = b[n:]
		case num == fieldStoreProducts && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return corrupt(n)
			}
			p, err := decodeProduct(v)
			if err != nil {
				return err
			}
			products = append(products, p)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return corrupt(n)
			}
			b = b[n:]
		}
	}

	s := a.Store(code)
	s.TotalPrice += total
	for _, p := range products {
		s.AddProduct(p.id, p.count)
	}
	return nil
}

func decodeProduct(b []byte) (productEntry, error) {
	var p productEntry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, corrupt(n)
		}
		b = b[n:]
		switch {
		case num == fieldProductID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return p, corrupt(n)
			}
			p.id = v
			b = b[n:]
		case num == fieldProductCount && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, corrupt(n)
			}
			p.count = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, corrupt(n)
			}
			b = b[n:]
		}
	}
	return p, nil
}

func corrupt(n int) error {
	return errors.WithMessage(ErrCorrupt, protowire.ParseError(n).Error())
}
