package mysql_batch

import (
	"fmt"
	"regexp"
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SinkConfig configures the report tables written to MySQL.
type SinkConfig struct {
	StoresTable   string `json:"storestable"`
	ProductsTable string `json:"productstable"`
	Replace       bool   `json:"replace"`
	BatchSize     int    `json:"batchsize"`
}

func (c *SinkConfig) WithDefaults() {
	if c.StoresTable == "" {
		c.StoresTable = "top_stores"
	}
	if c.ProductsTable == "" {
		c.ProductsTable = "top_products"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 2000
	}
}

func quoteIdentifier(s string) (string, error) {
	if !identifierRe.MatchString(s) {
		return "", fmt.Errorf("invalid identifier: %s", s)
	}
	return "`" + s + "`", nil
}
