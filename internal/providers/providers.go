package providers

import (
	"context"

	"checkout-system/internal/status"
	"checkout-system/models"
)

// AuthProvider wraps the external authentication service. Both calls may
// return status.ErrNoSession to mean "no session" rather than a failure.
type AuthProvider interface {
	// CheckExistingSession returns the current access token, or
	// status.ErrNoSession when the user has never logged in.
	CheckExistingSession(ctx context.Context) (string, error)

	// InteractiveLogin opens the provider's login prompt and blocks until it
	// resolves. status.ErrNoSession here means the user closed the prompt.
	InteractiveLogin(ctx context.Context) (string, error)
}

// PricingClient computes order totals for a selection snapshot.
type PricingClient interface {
	Quote(ctx context.Context, eventID string, sel models.Selection) (*models.OrderQuote, error)
}

// PromoClient resolves a promo code into the replacement ticket-type list.
type PromoClient interface {
	Resolve(ctx context.Context, code, eventID string) ([]models.TicketType, error)
}

// CapabilityHandle is one payment-capability session at the provider, sized
// to a specific quote. Complete reports the checkout outcome back to the
// provider UI and must tolerate being called exactly once per handle.
type CapabilityHandle interface {
	ID() string
	Complete(ctx context.Context, success bool) error
}

// PaymentProvider is the common contract for all payment integrations.
type PaymentProvider interface {
	// Name identifies the integration, e.g. "yespay".
	Name() string

	// CreateCapabilityHandle registers a payment sized to the quote.
	CreateCapabilityHandle(ctx context.Context, quote *models.OrderQuote, reference string) (CapabilityHandle, error)

	// CanPay reports whether the express path can fulfill the handle on the
	// current device.
	CanPay(ctx context.Context, handle CapabilityHandle) (bool, error)

	// CreateToken is the manual card entry path.
	CreateToken(ctx context.Context, card models.CardDetails) (*models.Token, error)

	// SetTransactionChannel installs the channel that receives provider-side
	// notifications (token produced by the user finishing the payment UI).
	SetTransactionChannel(ch chan *status.Transaction)

	// Close gracefully shuts down provider connections.
	Close(ctx context.Context) error
}
