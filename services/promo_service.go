package services

import (
	"context"
	"log"
	"sync"

	"checkout-system/internal/providers"
	"checkout-system/internal/status"
	"checkout-system/models"
)

// PromoResolver tracks the lifecycle of an optional promo-code lookup:
// idle -> pending -> applied|failed -> (input edited) idle. An applied code
// replaces the event's ticket-type list for the rest of the session.
type PromoResolver struct {
	mu      sync.Mutex
	state   models.PromoState
	client  providers.PromoClient
	eventID string
}

func NewPromoResolver(client providers.PromoClient, eventID string) *PromoResolver {
	return &PromoResolver{
		state:   models.PromoState{Status: models.PromoIdle},
		client:  client,
		eventID: eventID,
	}
}

// Submit resolves a promo code. Only one code may be in flight at a time; a
// submit while pending leaves the state untouched.
func (r *PromoResolver) Submit(ctx context.Context, code string) error {
	r.mu.Lock()
	if r.state.Status == models.PromoPending {
		r.mu.Unlock()
		return status.ErrPromoPending
	}
	r.state = models.PromoState{Status: models.PromoPending, Code: code}
	r.mu.Unlock()

	types, err := r.client.Resolve(ctx, code, r.eventID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		log.Printf("Promo code %q rejected: %v", code, err)
		r.state = models.PromoState{
			Status: models.PromoFailed,
			Code:   code,
			Reason: err.Error(),
		}
		return err
	}

	r.state = models.PromoState{
		Status:      models.PromoApplied,
		Code:        code,
		TicketTypes: types,
	}
	return nil
}

// OnInputEdited clears a failed lookup back to idle. An applied code is left
// alone: editing the field does not retract it.
func (r *PromoResolver) OnInputEdited() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Status == models.PromoFailed {
		r.state = models.PromoState{Status: models.PromoIdle}
	}
}

func (r *PromoResolver) State() models.PromoState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Effective returns the applied ticket-type list if present, else base.
func (r *PromoResolver) Effective(base []models.TicketType) []models.TicketType {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Status == models.PromoApplied {
		return r.state.TicketTypes
	}
	return base
}

// Reset discards the promo state (checkout attempt abandoned).
func (r *PromoResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = models.PromoState{Status: models.PromoIdle}
}
