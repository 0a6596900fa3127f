package agg

import (
	"bytes"
	"strconv"
)

// NumFields is the field count of a transaction line:
//
//	client_id|ticket_id|product_id|store_code|date|price
const NumFields = 6

const fieldSep = '|'

// Record is one parsed transaction line.
type Record struct {
	ClientID  string
	TicketID  string
	ProductID string
	StoreCode string
	Date      string
	Price     float64
}

// ParseLine turns one line into a Record. ok is false when the line must be
// skipped: wrong field count, empty product id or an unparsable price.
func ParseLine(line []byte) (rec Record, ok bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || bytes.Count(line, []byte{fieldSep}) != NumFields-1 {
		return Record{}, false
	}

	var fields [NumFields][]byte
	rest := line
	for i := 0; i < NumFields-1; i++ {
		idx := bytes.IndexByte(rest, fieldSep)
		fields[i] = rest[:idx]
		rest = rest[idx+1:]
	}
	fields[NumFields-1] = rest

	if len(fields[2]) == 0 {
		return Record{}, false
	}
	price, err := strconv.ParseFloat(string(bytes.TrimSpace(fields[5])), 64)
	if err != nil {
		return Record{}, false
	}

	return Record{
		ClientID:  string(fields[0]),
		TicketID:  string(fields[1]),
		ProductID: string(fields[2]),
		StoreCode: string(fields[3]),
		Date:      string(fields[4]),
		Price:     price,
	}, true
}
