package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"checkout-system/internal/providers"
	"checkout-system/internal/status"
	"checkout-system/models"
	"checkout-system/monitoring"
	"checkout-system/utils"
)

// RunState is the orchestrator's position within one checkout run.
type RunState string

const (
	RunIdle                 RunState = "idle"
	RunAwaitingAuth         RunState = "awaiting_auth"
	RunAwaitingQuote        RunState = "awaiting_quote"
	RunAwaitingPaymentSetup RunState = "awaiting_payment_setup"
	RunDone                 RunState = "done"
	RunAborted              RunState = "aborted"
)

// EngineDeps are the external collaborators one engine session needs.
type EngineDeps struct {
	Auth     providers.AuthProvider
	Pricing  providers.PricingClient
	Promo    providers.PromoClient
	Payment  providers.PaymentProvider
	Notifier Notifier

	// CheckoutTimeout bounds one orchestration run; zero means unbounded.
	CheckoutTimeout time.Duration
}

// Engine is one user's checkout session: the ticket ledger, promo resolver,
// auth gate, pricing stage, payment session and view machine, coordinated by
// the checkout orchestrator. User actions mutate the ledger and promo
// resolver directly; GoToCheckout drives the rest.
type Engine struct {
	SessionID string
	EventID   string

	ledger  *Ledger
	promo   *PromoResolver
	auth    *AuthGate
	pricing *PricingStage
	view    *ViewMachine

	paymentProvider providers.PaymentProvider
	notifier        Notifier
	checkoutTimeout time.Duration

	mu        sync.Mutex
	progress  models.CheckoutProgress
	runState  RunState
	quote     *models.OrderQuote
	payment   *PaymentSession
	orderCode string
	baseTypes []models.TicketType
}

func NewEngine(sessionID, eventID string, types []models.TicketType, deps EngineDeps) *Engine {
	return &Engine{
		SessionID: sessionID,
		EventID:   eventID,

		ledger:  NewLedger(types),
		promo:   NewPromoResolver(deps.Promo, eventID),
		auth:    NewAuthGate(deps.Auth, deps.Notifier, sessionID),
		pricing: NewPricingStage(deps.Pricing, eventID),
		view:    NewViewMachine(deps.Notifier, sessionID),

		paymentProvider: deps.Payment,
		notifier:        deps.Notifier,
		checkoutTimeout: deps.CheckoutTimeout,

		progress:  models.ProgressIdle,
		runState:  RunIdle,
		baseTypes: types,
	}
}

// Apply dispatches one inbound command.
func (e *Engine) Apply(ctx context.Context, cmd models.Command) error {
	switch cmd.Kind {
	case models.CmdAddTicket:
		e.AddTicket(cmd.TicketTypeID)
		return nil
	case models.CmdRemoveTicket:
		e.RemoveTicket(cmd.TicketTypeID)
		return nil
	case models.CmdSubmitPromoCode:
		return e.SubmitPromoCode(ctx, cmd.PromoCode)
	case models.CmdEditPromoInput:
		e.EditPromoInput()
		return nil
	case models.CmdGoToCheckout:
		return e.GoToCheckout(ctx)
	case models.CmdGoBack:
		e.GoBack()
		return nil
	case models.CmdSubmitCardPayment:
		if cmd.Card == nil {
			return &status.ValidationError{Fields: map[string]string{"card": "card details are required"}}
		}
		return e.SubmitCardPayment(ctx, *cmd.Card)
	case models.CmdSubmitFreePayment:
		return e.SubmitFreePayment(ctx)
	default:
		return errors.New("checkout: unknown command kind")
	}
}

func (e *Engine) AddTicket(ticketTypeID string)    { e.ledger.Increment(ticketTypeID) }
func (e *Engine) RemoveTicket(ticketTypeID string) { e.ledger.Decrement(ticketTypeID) }

// SubmitPromoCode resolves a promo code; an applied code replaces the
// effective ticket-type list for all subsequent ledger and pricing work.
func (e *Engine) SubmitPromoCode(ctx context.Context, code string) error {
	err := e.promo.Submit(ctx, code)
	switch {
	case errors.Is(err, status.ErrPromoPending):
		return nil
	case err != nil:
		monitoring.TrackPromoLookup("rejected")
		e.notifier.Publish(e.SessionID, models.Notification{
			Kind:   models.NotifyPromoFailed,
			Reason: e.promo.State().Reason,
		})
		return nil
	}

	monitoring.TrackPromoLookup("applied")
	types := e.promo.Effective(e.baseTypes)
	e.ledger.SetTicketTypes(types)
	e.notifier.Publish(e.SessionID, models.Notification{
		Kind:        models.NotifyPromoApplied,
		TicketTypes: types,
	})
	return nil
}

func (e *Engine) EditPromoInput() { e.promo.OnInputEdited() }

// GoToCheckout is the top-level orchestration run: auth, then pricing, then
// payment setup, then the view transition. At most one run is in flight; the
// pending progress flag doubles as the double-submit latch.
func (e *Engine) GoToCheckout(ctx context.Context) error {
	if !e.ledger.AnySelected() {
		return nil
	}
	// A run only starts from the tickets screen; once the view has moved
	// on, the purchase belongs to the payment path.
	if e.view.Current() != models.ViewTickets {
		return nil
	}

	e.mu.Lock()
	if e.progress == models.ProgressPending {
		e.mu.Unlock()
		return nil
	}
	e.progress = models.ProgressPending
	e.runState = RunAwaitingAuth

	// Fresh payment session per attempt; an aborted attempt's session is
	// discarded, never reused.
	ref, err := utils.GenerateReference(12)
	if err != nil {
		ref = e.SessionID
	}
	payment := NewPaymentSession(e.paymentProvider, e.notifier, e.SessionID, ref)
	payment.OnToken(func(*models.Token) { e.completePurchase(payment) })
	e.payment = payment
	e.mu.Unlock()

	if e.checkoutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.checkoutTimeout)
		defer cancel()
	}

	e.notifier.Publish(e.SessionID, models.Notification{Kind: models.NotifyCheckoutPending})

	// Stage 1: auth gate.
	start := time.Now()
	_, err = e.auth.EnsureAuthenticated(ctx)
	monitoring.ObserveStage("auth", time.Since(start))
	if err != nil {
		if errors.Is(err, status.ErrDeclined) {
			e.abortRun("declined")
			return nil
		}
		e.abortRun("provider_error")
		return err
	}

	// Stage 2: pricing for the current (possibly promo-modified) selection.
	e.setRunState(RunAwaitingQuote)
	start = time.Now()
	quote, err := e.pricing.Quote(ctx, e.ledger.Snapshot())
	monitoring.ObserveStage("quote", time.Since(start))
	if err != nil {
		if errors.Is(err, errQuoteSuperseded) {
			e.abortRun("superseded")
			return nil
		}
		e.notifier.Publish(e.SessionID, models.Notification{
			Kind:   models.NotifyQuoteFailed,
			Reason: err.Error(),
		})
		e.abortRun("provider_error")
		return err
	}

	e.mu.Lock()
	e.quote = quote
	e.mu.Unlock()

	e.notifier.Publish(e.SessionID, models.Notification{
		Kind:  models.NotifyQuoteReady,
		Quote: quote,
	})

	// Stage 3: payment capability. Failure here is tolerated; it only
	// disables the express-pay option.
	e.setRunState(RunAwaitingPaymentSetup)
	start = time.Now()
	payment.Probe(ctx, quote)
	monitoring.ObserveStage("payment_setup", time.Since(start))

	// Done: advance tickets -> checkout.
	e.setRunState(RunDone)
	e.view.Forward()

	e.mu.Lock()
	e.progress = models.ProgressCompleted
	e.mu.Unlock()

	e.notifier.Publish(e.SessionID, models.Notification{Kind: models.NotifyCheckoutCompleted})
	monitoring.TrackCheckoutRun("completed")
	return nil
}

// abortRun ends the current run. Progress returns to idle so the user may
// retry from the tickets screen; the completed notification still goes out
// so the UI re-enables its controls.
func (e *Engine) abortRun(outcome string) {
	e.mu.Lock()
	e.runState = RunAborted
	e.progress = models.ProgressIdle
	payment := e.payment
	e.payment = nil
	e.quote = nil
	e.mu.Unlock()

	if payment != nil {
		payment.Abandon()
	}

	e.notifier.Publish(e.SessionID, models.Notification{Kind: models.NotifyCheckoutCompleted})
	monitoring.TrackCheckoutRun(outcome)
	log.Printf("Checkout run aborted for session %s: %s", e.SessionID, outcome)
}

// GoBack retreats the view. Leaving the checkout screen abandons the
// attempt: the selection is emptied and the promo and payment sessions are
// discarded.
func (e *Engine) GoBack() {
	if e.view.Current() != models.ViewCheckout {
		e.view.Backward()
		return
	}

	e.view.Backward()

	e.mu.Lock()
	payment := e.payment
	e.payment = nil
	e.quote = nil
	e.progress = models.ProgressIdle
	e.runState = RunIdle
	e.mu.Unlock()

	if payment != nil {
		payment.ReportUserCancelled()
		payment.Abandon()
	}

	e.promo.Reset()
	e.ledger.SetTicketTypes(e.baseTypes)
	e.ledger.Reset()
}

// SubmitCardPayment runs the manual card path and, on success, completes
// the purchase.
func (e *Engine) SubmitCardPayment(ctx context.Context, card models.CardDetails) error {
	if e.view.Current() != models.ViewCheckout {
		return nil
	}

	e.mu.Lock()
	payment := e.payment
	e.mu.Unlock()
	if payment == nil {
		return status.ErrSessionGone
	}

	if _, err := payment.CreateToken(ctx, card); err != nil {
		return err
	}

	e.completePurchase(payment)
	return nil
}

// SubmitFreePayment completes a zero-total order without touching the
// payment provider.
func (e *Engine) SubmitFreePayment(_ context.Context) error {
	if e.view.Current() != models.ViewCheckout {
		return nil
	}

	e.mu.Lock()
	quote := e.quote
	payment := e.payment
	e.mu.Unlock()

	if quote == nil || !quote.IsFree() {
		return &status.ValidationError{Fields: map[string]string{"total": "order total is not zero"}}
	}

	e.completePurchase(payment)
	return nil
}

// OnTransaction routes a provider-side payment notification (express path)
// into the watcher race, and treats a resulting token as the submitted
// payment.
func (e *Engine) OnTransaction(tx *status.Transaction) {
	e.mu.Lock()
	payment := e.payment
	e.mu.Unlock()
	if payment == nil {
		log.Printf("Dropping payment transaction %s: no active attempt", tx.UUID)
		return
	}

	payment.HandleTransaction(tx)
}

// ReportPaymentUICancelled records that the user closed the express payment
// sheet.
func (e *Engine) ReportPaymentUICancelled() {
	e.mu.Lock()
	payment := e.payment
	e.mu.Unlock()
	if payment != nil {
		payment.ReportUserCancelled()
	}
}

func (e *Engine) completePurchase(payment *PaymentSession) {
	if payment != nil {
		payment.ReportCheckoutResult(true)
	}

	code, err := utils.GenerateCode(4)
	if err != nil {
		log.Printf("Error generating order code for session %s: %v", e.SessionID, err)
	}
	e.mu.Lock()
	e.orderCode = code
	e.mu.Unlock()

	e.view.Forward()
	e.notifier.Publish(e.SessionID, models.Notification{
		Kind:      models.NotifyPurchaseCompleted,
		OrderCode: code,
	})
}

func (e *Engine) setRunState(s RunState) {
	e.mu.Lock()
	e.runState = s
	e.mu.Unlock()
}

// EngineState is the read-only projection handed to the UI.
type EngineState struct {
	View        models.ViewState        `json:"view"`
	Progress    models.CheckoutProgress `json:"progress"`
	RunState    RunState                `json:"run_state"`
	Selection   models.Selection        `json:"selection"`
	TicketTypes []models.TicketType     `json:"ticket_types"`
	Promo       models.PromoState       `json:"promo"`
	Auth        models.AuthStatus       `json:"auth"`
	Quote       *models.OrderQuote      `json:"quote,omitempty"`
	Payment     models.PaymentStatus    `json:"payment"`
	Capable     bool                    `json:"capable"`
	OrderCode   string                  `json:"order_code,omitempty"`
}

func (e *Engine) State() EngineState {
	e.mu.Lock()
	progress := e.progress
	runState := e.runState
	quote := e.quote
	payment := e.payment
	orderCode := e.orderCode
	e.mu.Unlock()

	st := EngineState{
		View:        e.view.Current(),
		Progress:    progress,
		RunState:    runState,
		Selection:   e.ledger.Snapshot(),
		TicketTypes: e.ledger.TicketTypes(),
		Promo:       e.promo.State(),
		Auth:        e.auth.State().Status,
		Quote:       quote,
		Payment:     models.PaymentNone,
		OrderCode:   orderCode,
	}
	if payment != nil {
		st.Payment, st.Capable = payment.State()
	}
	return st
}

// Snapshot captures the persistable slice of the session.
func (e *Engine) Snapshot() Snapshot {
	auth := e.auth.State()
	return Snapshot{
		EventID:     e.EventID,
		Selection:   e.ledger.Snapshot(),
		AuthStatus:  auth.Status,
		AccessToken: auth.AccessToken,
		View:        e.view.Current(),
	}
}

// RestoreSnapshot adopts a previously persisted session slice.
func (e *Engine) RestoreSnapshot(snap *Snapshot) {
	if snap == nil {
		return
	}
	e.ledger.Restore(snap.Selection)
	e.auth.Restore(models.AuthState{Status: snap.AuthStatus, AccessToken: snap.AccessToken})
	e.view.Restore(snap.View)
}

// PaymentReference exposes the active attempt's provider reference so the
// session manager can route incoming transactions.
func (e *Engine) PaymentReference() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.payment == nil {
		return ""
	}
	return e.payment.Reference()
}
