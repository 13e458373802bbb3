package models

import "fmt"

type AuthStatus string

const (
	AuthPending         AuthStatus = "pending"
	AuthUnauthenticated AuthStatus = "unauthenticated"
	AuthAuthenticated   AuthStatus = "authenticated"
)

// AuthState persists across the whole session once authenticated.
type AuthState struct {
	Status      AuthStatus `json:"status"`
	AccessToken string     `json:"-"`
}

type CheckoutProgress string

const (
	ProgressIdle      CheckoutProgress = "idle"
	ProgressPending   CheckoutProgress = "pending"
	ProgressCompleted CheckoutProgress = "completed"
)

type ViewState string

const (
	ViewTickets  ViewState = "tickets"
	ViewCheckout ViewState = "checkout"
	ViewComplete ViewState = "complete"
)

// viewTransitions enumerates the legal forward/backward moves. A view not in
// this map is a programming error, not a runtime condition.
var viewTransitions = map[ViewState]struct{ forward, backward ViewState }{
	ViewTickets:  {forward: ViewCheckout, backward: ViewTickets},
	ViewCheckout: {forward: ViewComplete, backward: ViewTickets},
	ViewComplete: {forward: ViewComplete, backward: ViewComplete},
}

// Next returns the forward target for a view. Panics on an unknown view:
// that means the state machine itself is broken.
func (v ViewState) Next() ViewState {
	t, ok := viewTransitions[v]
	if !ok {
		panic(fmt.Sprintf("view: transition requested from unknown state %q", v))
	}
	return t.forward
}

// Prev returns the backward target for a view, with the same panic rule.
func (v ViewState) Prev() ViewState {
	t, ok := viewTransitions[v]
	if !ok {
		panic(fmt.Sprintf("view: transition requested from unknown state %q", v))
	}
	return t.backward
}
