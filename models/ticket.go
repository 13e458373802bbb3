package models

import (
	"github.com/shopspring/decimal"
)

// TicketType is one purchasable ticket tier of an event. Immutable once
// fetched for a given pricing snapshot.
type TicketType struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Remaining   int             `json:"remaining"`
}

// MaxPerType caps how many tickets of one type a single order may hold.
const MaxPerType = 10

// Selection maps ticket type IDs to selected quantities. Zero entries are
// pruned, so an absent key and quantity 0 are the same thing.
type Selection map[string]int

func (s Selection) Any() bool {
	for _, q := range s {
		if q > 0 {
			return true
		}
	}
	return false
}

func (s Selection) Total() int {
	total := 0
	for _, q := range s {
		total += q
	}
	return total
}

// Clone returns an independent copy so a pricing request can hold a stable
// snapshot while the user keeps clicking.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for id, q := range s {
		out[id] = q
	}
	return out
}
