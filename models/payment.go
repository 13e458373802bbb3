package models

type PaymentStatus string

const (
	PaymentNone        PaymentStatus = "none"
	PaymentProbing     PaymentStatus = "probing"
	PaymentReady       PaymentStatus = "ready"
	PaymentTokenIssued PaymentStatus = "token_issued"
	PaymentCancelled   PaymentStatus = "cancelled"
	PaymentFailed      PaymentStatus = "failed"
)

// Settled reports whether the payment session has reached a decision that
// later race losers must not overturn.
func (s PaymentStatus) Settled() bool {
	switch s {
	case PaymentTokenIssued, PaymentCancelled, PaymentFailed:
		return true
	}
	return false
}

// Token is an opaque single-use credential representing authorized payment
// details, produced by the payment provider.
type Token struct {
	ID     string `json:"id"`
	Method string `json:"method"` // "express" or "card"
}

// CardDetails is the manual card entry path input.
type CardDetails struct {
	HolderName string `json:"holder_name"`
	Number     string `json:"number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVC        string `json:"cvc"`
}

// Validate reports the inline field errors of the manual card path. These
// surface next to the offending field, never as a blocking overlay.
func (c CardDetails) Validate() map[string]string {
	problems := make(map[string]string)
	if c.HolderName == "" {
		problems["holder_name"] = "cardholder name is required"
	}
	if c.Number == "" {
		problems["number"] = "card number is required"
	}
	if c.ExpMonth < 1 || c.ExpMonth > 12 {
		problems["exp_month"] = "invalid expiry month"
	}
	if c.ExpYear < 2000 {
		problems["exp_year"] = "invalid expiry year"
	}
	if c.CVC == "" {
		problems["cvc"] = "cvc is required"
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}
