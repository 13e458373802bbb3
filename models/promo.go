package models

type PromoStatus string

const (
	PromoIdle    PromoStatus = "idle"
	PromoPending PromoStatus = "pending"
	PromoApplied PromoStatus = "applied"
	PromoFailed  PromoStatus = "failed"
)

// PromoState is the lifecycle of an optional promo-code lookup. An applied
// code swaps the event's ticket-type list for the rest of the session.
type PromoState struct {
	Status      PromoStatus  `json:"status"`
	Code        string       `json:"code"`
	TicketTypes []TicketType `json:"ticket_types,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}
