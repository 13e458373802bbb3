package services

import (
	"sync"

	"checkout-system/models"
)

// ViewMachine owns the screen state. Nothing else mutates the view; the
// orchestrator drives the tickets -> checkout transition and the payment
// submit drives checkout -> complete.
type ViewMachine struct {
	mu        sync.Mutex
	view      models.ViewState
	notifier  Notifier
	sessionID string
}

func NewViewMachine(notifier Notifier, sessionID string) *ViewMachine {
	return &ViewMachine{
		view:      models.ViewTickets,
		notifier:  notifier,
		sessionID: sessionID,
	}
}

func (v *ViewMachine) Current() models.ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.view
}

// Forward advances the view. Returns the new view; a no-op move (complete
// has no forward) returns the current one unchanged.
func (v *ViewMachine) Forward() models.ViewState {
	v.mu.Lock()
	next := v.view.Next()
	changed := next != v.view
	v.view = next
	v.mu.Unlock()

	if changed {
		v.publish(next)
	}
	return next
}

// Backward retreats the view. Tickets and complete stay put: there is no
// undo after purchase.
func (v *ViewMachine) Backward() models.ViewState {
	v.mu.Lock()
	prev := v.view.Prev()
	changed := prev != v.view
	v.view = prev
	v.mu.Unlock()

	if changed {
		v.publish(prev)
	}
	return prev
}

// Restore adopts a persisted view state (session snapshot cache).
func (v *ViewMachine) Restore(view models.ViewState) {
	switch view {
	case models.ViewTickets, models.ViewCheckout, models.ViewComplete:
	default:
		return
	}
	v.mu.Lock()
	v.view = view
	v.mu.Unlock()
}

func (v *ViewMachine) publish(view models.ViewState) {
	v.notifier.Publish(v.sessionID, models.Notification{
		Kind: models.NotifyViewChanged,
		View: view,
	})
}
