package status

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrDeclined marks a deliberate user abort (closed login or payment
	// prompt). Never surfaced as an error overlay.
	ErrDeclined = errors.New("checkout: declined by user")

	ErrNoSession    = errors.New("auth: no active session")
	ErrPromoPending = errors.New("promo: lookup already in flight")
	ErrSessionGone  = errors.New("session: not found or expired")
)

// ValidationError carries inline field errors (promo code, card fields).
// Surfaced next to the offending field, never as a blocking overlay.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// Transaction is a payment-provider notification pushed over the provider's
// notification channel when the user completes the payment UI.
type Transaction struct {
	UUID      string          `json:"uuid"`
	RefID     string          `json:"ref_id"`
	Token     string          `json:"token"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
}
