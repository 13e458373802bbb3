package models

// CommandKind enumerates the inbound actions the engine consumes. The
// payload fields that apply to each kind are on Command; unused fields stay
// zero.
type CommandKind string

const (
	CmdAddTicket         CommandKind = "add_ticket"
	CmdRemoveTicket      CommandKind = "remove_ticket"
	CmdSubmitPromoCode   CommandKind = "submit_promo_code"
	CmdEditPromoInput    CommandKind = "edit_promo_input"
	CmdGoToCheckout      CommandKind = "go_to_checkout"
	CmdGoBack            CommandKind = "go_back"
	CmdSubmitCardPayment CommandKind = "submit_card_payment"
	CmdSubmitFreePayment CommandKind = "submit_free_payment"
)

type Command struct {
	Kind         CommandKind  `json:"kind"`
	TicketTypeID string       `json:"ticket_type_id,omitempty"`
	PromoCode    string       `json:"promo_code,omitempty"`
	Card         *CardDetails `json:"card,omitempty"`
}

// NotificationKind enumerates the outbound events published for observers.
type NotificationKind string

const (
	NotifyViewChanged       NotificationKind = "view_changed"
	NotifyCheckoutPending   NotificationKind = "checkout_pending"
	NotifyCheckoutCompleted NotificationKind = "checkout_completed"
	NotifyQuoteReady        NotificationKind = "quote_ready"
	NotifyQuoteFailed       NotificationKind = "quote_failed"
	NotifyPromoApplied      NotificationKind = "promo_applied"
	NotifyPromoFailed       NotificationKind = "promo_failed"
	NotifyCapabilityKnown   NotificationKind = "payment_capability_known"
	NotifyTokenIssued       NotificationKind = "token_issued"
	NotifyTokenFailed       NotificationKind = "token_failed"
	NotifyAuthChanged       NotificationKind = "auth_changed"
	NotifyPurchaseCompleted NotificationKind = "purchase_completed"
)

type Notification struct {
	Kind NotificationKind `json:"type"`

	View        ViewState    `json:"view,omitempty"`
	Quote       *OrderQuote  `json:"quote,omitempty"`
	TicketTypes []TicketType `json:"ticket_types,omitempty"`
	Capable     *bool        `json:"capable,omitempty"`
	Token       *Token       `json:"token,omitempty"`
	Auth        AuthStatus   `json:"auth,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	OrderCode   string       `json:"order_code,omitempty"`
}
