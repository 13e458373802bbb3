package models

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderQuote is a priced breakdown for one selection snapshot. Fingerprint
// ties the quote to the selection that produced it; if the selection changes
// after checkout begins the quote must be recomputed.
type OrderQuote struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Fees        decimal.Decimal `json:"fees"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Fingerprint string          `json:"fingerprint"`
}

func (q OrderQuote) IsFree() bool {
	return q.Total.IsZero()
}

// SelectionFingerprint produces a stable key for a selection, e.g.
// "ga=2,vip=1". Used to detect stale quotes.
func SelectionFingerprint(sel Selection) string {
	ids := make([]string, 0, len(sel))
	for id, qty := range sel {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id+"="+strconv.Itoa(sel[id]))
	}
	return strings.Join(parts, ",")
}
