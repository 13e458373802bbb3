package services

import (
	"context"
	"errors"
	"log"
	"sync"

	"checkout-system/internal/providers"
	"checkout-system/internal/status"
	"checkout-system/models"
	"checkout-system/monitoring"
)

// PaymentSession supervises one checkout attempt's payment capability and
// token creation. It is created fresh per attempt and discarded if the
// attempt aborts.
//
// The express path runs a detached watcher that races
// {token produced, payment UI cancelled, session abandoned}; losing branches
// are never cancelled, their late events just hit an idempotent settle and
// get dropped. A token win then races {checkout success, checkout failure,
// user cancellation} to decide whether the provider handle is completed as
// success or fail.
type PaymentSession struct {
	mu        sync.Mutex
	state     models.PaymentStatus
	capable   bool
	handle    providers.CapabilityHandle
	token     *models.Token
	reference string

	provider  providers.PaymentProvider
	notifier  Notifier
	sessionID string

	// onToken fires once when the express watcher wins with a token.
	onToken func(*models.Token)

	txCh       chan *status.Transaction
	cancelUICh chan struct{}
	resultCh   chan bool
	abandonCh  chan struct{}

	abandonOnce sync.Once
}

func NewPaymentSession(provider providers.PaymentProvider, notifier Notifier, sessionID, reference string) *PaymentSession {
	return &PaymentSession{
		state:     models.PaymentNone,
		provider:  provider,
		notifier:  notifier,
		sessionID: sessionID,
		reference: reference,

		// Buffered so racing senders never block; a loser's send sits in
		// the buffer until it is drained or the session is dropped.
		txCh:       make(chan *status.Transaction, 1),
		cancelUICh: make(chan struct{}, 1),
		resultCh:   make(chan bool, 1),
		abandonCh:  make(chan struct{}),
	}
}

// OnToken installs the callback fired when the express watcher produces a
// token. Must be set before Probe.
func (p *PaymentSession) OnToken(fn func(*models.Token)) {
	p.onToken = fn
}

// Probe creates a payment-capability handle sized to the quote and checks
// whether the express path can fulfill it. Capability failure is absorbed
// into capable=false; only handle creation failure settles the session.
func (p *PaymentSession) Probe(ctx context.Context, quote *models.OrderQuote) {
	p.mu.Lock()
	p.state = models.PaymentProbing
	p.mu.Unlock()

	handle, err := p.provider.CreateCapabilityHandle(ctx, quote, p.reference)
	if err != nil {
		log.Printf("Payment capability handle failed for %s: %v", p.sessionID, err)
		p.settle(models.PaymentFailed, nil)
		p.publishCapability(false)
		return
	}

	capable, err := p.provider.CanPay(ctx, handle)
	if err != nil {
		// Express pay is an enhancement; a failed probe just disables it.
		log.Printf("Payment capability probe failed for %s: %v", p.sessionID, err)
		capable = false
	}

	p.mu.Lock()
	p.state = models.PaymentReady
	p.capable = capable
	p.handle = handle
	p.mu.Unlock()

	p.publishCapability(capable)

	if capable {
		go p.watchToken()
	}
}

// watchToken is the detached background watcher of the express path. It
// outlives the orchestration run that spawned it; there is no join.
func (p *PaymentSession) watchToken() {
	select {
	case tx := <-p.txCh:
		token := &models.Token{ID: tx.Token, Method: "express"}
		if !p.settle(models.PaymentTokenIssued, token) {
			return
		}
		monitoring.TrackPaymentRace("token")
		p.notifier.Publish(p.sessionID, models.Notification{
			Kind:  models.NotifyTokenIssued,
			Token: token,
		})
		if p.onToken != nil {
			p.onToken(token)
		}
		p.awaitCompletion()

	case <-p.cancelUICh:
		if p.settle(models.PaymentCancelled, nil) {
			monitoring.TrackPaymentRace("cancelled")
		}

	case <-p.abandonCh:
		monitoring.TrackPaymentRace("abandoned")
	}
}

// awaitCompletion decides whether the provider handle is reported as a
// successful or failed payment, once a token has been issued. A UI cancel
// arriving after the token is a race loser and is dropped; only the
// checkout result or an abandoned session releases the watcher.
func (p *PaymentSession) awaitCompletion() {
	var success bool
	select {
	case success = <-p.resultCh:
	case <-p.abandonCh:
		return
	}

	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()
	if handle == nil {
		return
	}
	if err := handle.Complete(context.Background(), success); err != nil {
		log.Printf("Error completing payment handle %s: %v", handle.ID(), err)
	}
}

// CreateToken is the manual card entry path, mutually exclusive with the
// express watcher: only one of the two produces the token that feeds
// checkout.
func (p *PaymentSession) CreateToken(ctx context.Context, card models.CardDetails) (*models.Token, error) {
	if problems := card.Validate(); problems != nil {
		return nil, &status.ValidationError{Fields: problems}
	}

	token, err := p.provider.CreateToken(ctx, card)
	if err != nil {
		p.notifier.Publish(p.sessionID, models.Notification{
			Kind:   models.NotifyTokenFailed,
			Reason: err.Error(),
		})
		return nil, err
	}

	if !p.settle(models.PaymentTokenIssued, token) {
		return nil, errors.New("payment: session already settled")
	}
	p.notifier.Publish(p.sessionID, models.Notification{
		Kind:  models.NotifyTokenIssued,
		Token: token,
	})
	return token, nil
}

// HandleTransaction feeds a provider-side notification into the watcher
// race. Never blocks: if nobody is racing, the event is dropped once the
// buffer is full.
func (p *PaymentSession) HandleTransaction(tx *status.Transaction) {
	select {
	case p.txCh <- tx:
	default:
		log.Printf("Dropping payment transaction %s: no watcher", tx.UUID)
	}
}

// ReportUserCancelled records that the user closed the payment UI.
func (p *PaymentSession) ReportUserCancelled() {
	select {
	case p.cancelUICh <- struct{}{}:
	default:
	}
}

// ReportCheckoutResult records the checkout outcome for the completion race.
func (p *PaymentSession) ReportCheckoutResult(success bool) {
	select {
	case p.resultCh <- success:
	default:
	}
}

// Abandon releases the watcher when the session is discarded.
func (p *PaymentSession) Abandon() {
	p.abandonOnce.Do(func() { close(p.abandonCh) })
}

// settle performs the idempotent state decision: the first terminal outcome
// wins, later race losers are logged and dropped.
func (p *PaymentSession) settle(to models.PaymentStatus, token *models.Token) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Settled() {
		log.Printf("Dropping late payment event %s for %s (already %s)", to, p.sessionID, p.state)
		return false
	}
	p.state = to
	if token != nil {
		p.token = token
	}
	return true
}

func (p *PaymentSession) publishCapability(capable bool) {
	p.notifier.Publish(p.sessionID, models.Notification{
		Kind:    models.NotifyCapabilityKnown,
		Capable: &capable,
	})
}

func (p *PaymentSession) State() (models.PaymentStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.capable
}

func (p *PaymentSession) Token() *models.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *PaymentSession) Reference() string {
	return p.reference
}
