package services

import (
	"sync"

	"checkout-system/models"
)

// Ledger holds the per-ticket-type selected quantities for one session and
// enforces the capacity invariants. All mutation goes through this type;
// readers get copies.
type Ledger struct {
	mu    sync.Mutex
	types map[string]models.TicketType
	sel   models.Selection
}

func NewLedger(types []models.TicketType) *Ledger {
	l := &Ledger{sel: make(models.Selection)}
	l.SetTicketTypes(types)
	return l
}

// SetTicketTypes replaces the effective ticket-type list (promo codes swap
// the event's base list). Existing selections for vanished types are pruned.
func (l *Ledger) SetTicketTypes(types []models.TicketType) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.types = make(map[string]models.TicketType, len(types))
	for _, t := range types {
		l.types[t.ID] = t
	}
	for id := range l.sel {
		if _, ok := l.types[id]; !ok {
			delete(l.sel, id)
		}
	}
}

// Increment adds one ticket of the given type. Out-of-capacity requests are
// silent no-ops: the UI is expected to have disabled the control.
func (l *Ledger) Increment(ticketTypeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.types[ticketTypeID]
	if !ok {
		return
	}
	q := l.sel[ticketTypeID]
	if q+1 > models.MaxPerType || q+1 > t.Remaining {
		return
	}
	l.sel[ticketTypeID] = q + 1
}

// Decrement removes one ticket of the given type, never going below zero.
func (l *Ledger) Decrement(ticketTypeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := l.sel[ticketTypeID]
	if q-1 < 0 {
		return
	}
	if q-1 == 0 {
		delete(l.sel, ticketTypeID)
		return
	}
	l.sel[ticketTypeID] = q - 1
}

func (l *Ledger) AnySelected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sel.Any()
}

func (l *Ledger) TotalSelected() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sel.Total()
}

// Snapshot returns an independent copy of the current selection.
func (l *Ledger) Snapshot() models.Selection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sel.Clone()
}

// Restore adopts a previously persisted selection, re-applying the capacity
// rules so a stale snapshot cannot exceed current inventory.
func (l *Ledger) Restore(sel models.Selection) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sel = make(models.Selection)
	for id, q := range sel {
		t, ok := l.types[id]
		if !ok || q <= 0 {
			continue
		}
		if q > models.MaxPerType {
			q = models.MaxPerType
		}
		if q > t.Remaining {
			q = t.Remaining
		}
		if q > 0 {
			l.sel[id] = q
		}
	}
}

// Reset empties the selection (user abandoned the flow).
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sel = make(models.Selection)
}

// TicketTypes returns the effective ticket-type list in no particular order.
func (l *Ledger) TicketTypes() []models.TicketType {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.TicketType, 0, len(l.types))
	for _, t := range l.types {
		out = append(out, t)
	}
	return out
}
