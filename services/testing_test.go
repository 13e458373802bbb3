package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"checkout-system/internal/providers"
	"checkout-system/internal/status"
	"checkout-system/models"

	"github.com/shopspring/decimal"
)

// Shared fakes for the external collaborators.

func testTicketTypes() []models.TicketType {
	return []models.TicketType{
		{ID: "ga", Name: "General Admission", Price: decimal.NewFromInt(30), Currency: "USD", Remaining: 100},
		{ID: "vip", Name: "VIP", Price: decimal.NewFromInt(120), Currency: "USD", Remaining: 1},
	}
}

type fakeAuth struct {
	mu sync.Mutex

	existingToken string
	existingErr   error
	loginToken    string
	loginErr      error
	loginDelay    time.Duration

	loginCalls int
}

func (f *fakeAuth) CheckExistingSession(ctx context.Context) (string, error) {
	return f.existingToken, f.existingErr
}

func (f *fakeAuth) InteractiveLogin(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	if f.loginDelay > 0 {
		time.Sleep(f.loginDelay)
	}
	return f.loginToken, f.loginErr
}

func (f *fakeAuth) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

type fakePricing struct {
	mu sync.Mutex

	quote *models.OrderQuote
	err   error
	delay time.Duration
	calls int
}

func (f *fakePricing) Quote(ctx context.Context, eventID string, sel models.Selection) (*models.OrderQuote, error) {
	f.mu.Lock()
	f.calls++
	quote, err, delay := f.quote, f.err, f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if quote == nil {
		quote = &models.OrderQuote{
			Subtotal: decimal.NewFromInt(30),
			Fees:     decimal.NewFromInt(3),
			Total:    decimal.NewFromInt(33),
			Currency: "USD",
		}
	}
	cp := *quote
	return &cp, nil
}

type fakePromo struct {
	mu sync.Mutex

	types []models.TicketType
	err   error
	delay time.Duration
	calls int
}

func (f *fakePromo) Resolve(ctx context.Context, code, eventID string) ([]models.TicketType, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.types, nil
}

func (f *fakePromo) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHandle struct {
	mu        sync.Mutex
	id        string
	completed []bool
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Complete(ctx context.Context, success bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = append(h.completed, success)
	return nil
}

func (h *fakeHandle) Completions() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]bool, len(h.completed))
	copy(out, h.completed)
	return out
}

type fakePayment struct {
	mu sync.Mutex

	handle    *fakeHandle
	handleErr error
	capable   bool
	canPayErr error
	token     *models.Token
	tokenErr  error
}

func (f *fakePayment) Name() string { return "fake" }

func (f *fakePayment) CreateCapabilityHandle(ctx context.Context, quote *models.OrderQuote, reference string) (providers.CapabilityHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handleErr != nil {
		return nil, f.handleErr
	}
	if f.handle == nil {
		f.handle = &fakeHandle{id: "handle-" + reference}
	}
	return f.handle, nil
}

func (f *fakePayment) CanPay(ctx context.Context, handle providers.CapabilityHandle) (bool, error) {
	return f.capable, f.canPayErr
}

func (f *fakePayment) CreateToken(ctx context.Context, card models.CardDetails) (*models.Token, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	if f.token != nil {
		return f.token, nil
	}
	return &models.Token{ID: "tok_card_1", Method: "card"}, nil
}

func (f *fakePayment) SetTransactionChannel(ch chan *status.Transaction) {}

func (f *fakePayment) Close(ctx context.Context) error { return nil }

func (f *fakePayment) Handle() *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handle
}

func testEngine(deps EngineDeps) *Engine {
	if deps.Auth == nil {
		deps.Auth = &fakeAuth{existingToken: "tok-auth"}
	}
	if deps.Pricing == nil {
		deps.Pricing = &fakePricing{}
	}
	if deps.Promo == nil {
		deps.Promo = &fakePromo{}
	}
	if deps.Payment == nil {
		deps.Payment = &fakePayment{}
	}
	if deps.Notifier == nil {
		deps.Notifier = NewMemoryNotifier()
	}
	return NewEngine("user-1:event-1", "event-1", testTicketTypes(), deps)
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

var errProviderDown = errors.New("provider unavailable")
