package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"checkout-system/internal/status"
	"checkout-system/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_GoToCheckoutRequiresSelection(t *testing.T) {
	notifier := NewMemoryNotifier()
	e := testEngine(EngineDeps{Notifier: notifier})

	require.NoError(t, e.GoToCheckout(context.Background()))

	st := e.State()
	assert.Equal(t, models.ViewTickets, st.View)
	assert.Equal(t, models.ProgressIdle, st.Progress)
	assert.Empty(t, notifier.Events())
}

func TestEngine_HappyPath(t *testing.T) {
	notifier := NewMemoryNotifier()
	e := testEngine(EngineDeps{Notifier: notifier})

	e.AddTicket("ga")
	e.AddTicket("ga")
	require.NoError(t, e.GoToCheckout(context.Background()))

	st := e.State()
	assert.Equal(t, models.ViewCheckout, st.View)
	assert.Equal(t, models.ProgressCompleted, st.Progress)
	assert.Equal(t, RunDone, st.RunState)
	require.NotNil(t, st.Quote)
	assert.Equal(t, models.SelectionFingerprint(models.Selection{"ga": 2}), st.Quote.Fingerprint)
	assert.Equal(t, models.PaymentReady, st.Payment)

	_, ok := notifier.Last(models.NotifyCheckoutPending)
	assert.True(t, ok)
	_, ok = notifier.Last(models.NotifyQuoteReady)
	assert.True(t, ok)
	_, ok = notifier.Last(models.NotifyCapabilityKnown)
	assert.True(t, ok)
	_, ok = notifier.Last(models.NotifyCheckoutCompleted)
	assert.True(t, ok)
}

func TestEngine_DoubleSubmitLatched(t *testing.T) {
	pricing := &fakePricing{delay: 100 * time.Millisecond}
	e := testEngine(EngineDeps{Pricing: pricing})
	e.AddTicket("ga")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.GoToCheckout(context.Background())
	}()

	require.True(t, waitFor(func() bool {
		return e.State().Progress == models.ProgressPending
	}, time.Second))

	// The second submit is swallowed by the pending latch.
	require.NoError(t, e.GoToCheckout(context.Background()))
	wg.Wait()

	pricing.mu.Lock()
	calls := pricing.calls
	pricing.mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.Equal(t, models.ViewCheckout, e.State().View)
}

func TestEngine_ResubmitAfterCompletedRunIsIgnored(t *testing.T) {
	pricing := &fakePricing{}
	e := testEngine(EngineDeps{Pricing: pricing})
	e.AddTicket("ga")

	require.NoError(t, e.GoToCheckout(context.Background()))
	require.Equal(t, models.ViewCheckout, e.State().View)

	// No payment was submitted, so a second submit must not rerun the
	// pipeline or push the view past checkout.
	require.NoError(t, e.GoToCheckout(context.Background()))

	st := e.State()
	assert.Equal(t, models.ViewCheckout, st.View)
	assert.Equal(t, models.ProgressCompleted, st.Progress)

	pricing.mu.Lock()
	calls := pricing.calls
	pricing.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestEngine_RunTimeoutAborts(t *testing.T) {
	auth := &fakeAuth{existingErr: status.ErrNoSession, loginToken: "tok-1", loginDelay: 500 * time.Millisecond}
	e := testEngine(EngineDeps{Auth: auth, CheckoutTimeout: 20 * time.Millisecond})
	e.AddTicket("ga")

	err := e.GoToCheckout(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	st := e.State()
	assert.Equal(t, models.ViewTickets, st.View)
	assert.Equal(t, models.ProgressIdle, st.Progress)
	assert.Equal(t, RunAborted, st.RunState)
}

func TestEngine_DeclinedLoginAbortsSilently(t *testing.T) {
	auth := &fakeAuth{existingErr: status.ErrNoSession, loginErr: status.ErrNoSession}
	notifier := NewMemoryNotifier()
	e := testEngine(EngineDeps{Auth: auth, Notifier: notifier})
	e.AddTicket("ga")

	require.NoError(t, e.GoToCheckout(context.Background()))

	st := e.State()
	assert.Equal(t, models.ViewTickets, st.View)
	assert.Equal(t, models.ProgressIdle, st.Progress)
	assert.Equal(t, RunAborted, st.RunState)
	// Selection survives a declined login; the user may retry.
	assert.Equal(t, models.Selection{"ga": 1}, st.Selection)

	// The completed notification still goes out so the UI unlatches.
	_, ok := notifier.Last(models.NotifyCheckoutCompleted)
	assert.True(t, ok)
	_, ok = notifier.Last(models.NotifyQuoteReady)
	assert.False(t, ok)
}

func TestEngine_AuthProviderErrorSurfaces(t *testing.T) {
	auth := &fakeAuth{existingErr: errProviderDown}
	e := testEngine(EngineDeps{Auth: auth})
	e.AddTicket("ga")

	err := e.GoToCheckout(context.Background())
	assert.ErrorIs(t, err, errProviderDown)

	st := e.State()
	assert.Equal(t, models.ViewTickets, st.View)
	assert.Equal(t, models.ProgressIdle, st.Progress)
}

func TestEngine_QuoteFailureAborts(t *testing.T) {
	pricing := &fakePricing{err: errProviderDown}
	notifier := NewMemoryNotifier()
	e := testEngine(EngineDeps{Pricing: pricing, Notifier: notifier})
	e.AddTicket("ga")

	err := e.GoToCheckout(context.Background())
	assert.ErrorIs(t, err, errProviderDown)

	n, ok := notifier.Last(models.NotifyQuoteFailed)
	require.True(t, ok)
	assert.NotEmpty(t, n.Reason)
	assert.Equal(t, models.ViewTickets, e.State().View)
	assert.Nil(t, e.State().Quote)
}

func TestEngine_PaymentProbeFailureStillLandsOnCheckout(t *testing.T) {
	payment := &fakePayment{canPayErr: errProviderDown}
	e := testEngine(EngineDeps{Payment: payment})
	e.AddTicket("ga")

	require.NoError(t, e.GoToCheckout(context.Background()))

	st := e.State()
	assert.Equal(t, models.ViewCheckout, st.View)
	assert.Equal(t, models.PaymentReady, st.Payment)
	assert.False(t, st.Capable)
}

func TestEngine_PromoAppliedReplacesTicketTypes(t *testing.T) {
	promoTypes := []models.TicketType{
		{ID: "promo-ga", Name: "GA (promo)", Price: decimal.NewFromInt(15), Currency: "USD", Remaining: 50},
	}
	promo := &fakePromo{types: promoTypes}
	notifier := NewMemoryNotifier()
	e := testEngine(EngineDeps{Promo: promo, Notifier: notifier})
	e.AddTicket("ga")

	require.NoError(t, e.SubmitPromoCode(context.Background(), "HALFOFF"))

	st := e.State()
	assert.Equal(t, promoTypes, st.TicketTypes)
	// The old selection referenced a type the promo list dropped.
	assert.Empty(t, st.Selection)

	n, ok := notifier.Last(models.NotifyPromoApplied)
	require.True(t, ok)
	assert.Equal(t, promoTypes, n.TicketTypes)
}

func TestEngine_PromoRejectionIsNotAnError(t *testing.T) {
	promo := &fakePromo{err: errProviderDown}
	notifier := NewMemoryNotifier()
	e := testEngine(EngineDeps{Promo: promo, Notifier: notifier})

	require.NoError(t, e.SubmitPromoCode(context.Background(), "BAD"))

	n, ok := notifier.Last(models.NotifyPromoFailed)
	require.True(t, ok)
	assert.NotEmpty(t, n.Reason)
	assert.Equal(t, models.PromoFailed, e.State().Promo.Status)
}

func TestEngine_GoBackFromCheckoutResetsAttempt(t *testing.T) {
	promoTypes := []models.TicketType{
		{ID: "promo-ga", Name: "GA (promo)", Price: decimal.NewFromInt(15), Currency: "USD", Remaining: 50},
	}
	e := testEngine(EngineDeps{Promo: &fakePromo{types: promoTypes}})
	e.AddTicket("ga")
	require.NoError(t, e.SubmitPromoCode(context.Background(), "HALFOFF"))
	e.AddTicket("promo-ga")
	require.NoError(t, e.GoToCheckout(context.Background()))
	require.Equal(t, models.ViewCheckout, e.State().View)

	e.GoBack()

	st := e.State()
	assert.Equal(t, models.ViewTickets, st.View)
	assert.Equal(t, models.ProgressIdle, st.Progress)
	assert.Empty(t, st.Selection)
	assert.Equal(t, models.PromoIdle, st.Promo.Status)
	// The base ticket-type list is back in effect.
	assert.ElementsMatch(t, testTicketTypes(), st.TicketTypes)
	assert.Nil(t, st.Quote)
	assert.Equal(t, models.PaymentNone, st.Payment)
}

func TestEngine_CardPaymentCompletesPurchase(t *testing.T) {
	notifier := NewMemoryNotifier()
	e := testEngine(EngineDeps{Notifier: notifier})
	e.AddTicket("ga")
	require.NoError(t, e.GoToCheckout(context.Background()))

	card := models.CardDetails{
		HolderName: "Ada Lovelace",
		Number:     "4242424242424242",
		ExpMonth:   12,
		ExpYear:    2030,
		CVC:        "123",
	}
	require.NoError(t, e.SubmitCardPayment(context.Background(), card))

	st := e.State()
	assert.Equal(t, models.ViewComplete, st.View)
	assert.Equal(t, models.PaymentTokenIssued, st.Payment)
	assert.Regexp(t, "^[0-9A-F]{8}$", st.OrderCode)

	n, ok := notifier.Last(models.NotifyPurchaseCompleted)
	require.True(t, ok)
	assert.Equal(t, st.OrderCode, n.OrderCode)
}

func TestEngine_CardPaymentOutsideCheckoutIgnored(t *testing.T) {
	e := testEngine(EngineDeps{})

	require.NoError(t, e.SubmitCardPayment(context.Background(), models.CardDetails{}))
	assert.Equal(t, models.ViewTickets, e.State().View)
}

func TestEngine_CardValidationErrorSurfaces(t *testing.T) {
	e := testEngine(EngineDeps{})
	e.AddTicket("ga")
	require.NoError(t, e.GoToCheckout(context.Background()))

	err := e.SubmitCardPayment(context.Background(), models.CardDetails{})

	var verr *status.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, models.ViewCheckout, e.State().View)
}

func TestEngine_FreePaymentRequiresZeroTotal(t *testing.T) {
	e := testEngine(EngineDeps{})
	e.AddTicket("ga")
	require.NoError(t, e.GoToCheckout(context.Background()))

	err := e.SubmitFreePayment(context.Background())

	var verr *status.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "total")
}

func TestEngine_FreePaymentCompletesZeroOrder(t *testing.T) {
	pricing := &fakePricing{quote: &models.OrderQuote{
		Subtotal: decimal.Zero,
		Fees:     decimal.Zero,
		Total:    decimal.Zero,
		Currency: "USD",
	}}
	e := testEngine(EngineDeps{Pricing: pricing})
	e.AddTicket("ga")
	require.NoError(t, e.GoToCheckout(context.Background()))

	require.NoError(t, e.SubmitFreePayment(context.Background()))
	assert.Equal(t, models.ViewComplete, e.State().View)
}

func TestEngine_ExpressTokenCompletesPurchase(t *testing.T) {
	payment := &fakePayment{capable: true}
	e := testEngine(EngineDeps{Payment: payment})
	e.AddTicket("ga")
	require.NoError(t, e.GoToCheckout(context.Background()))

	ref := e.PaymentReference()
	require.NotEmpty(t, ref)
	e.OnTransaction(&status.Transaction{UUID: "tx-1", RefID: ref, Token: "tok_express"})

	require.True(t, waitFor(func() bool {
		return e.State().View == models.ViewComplete
	}, time.Second))

	// The provider handle is completed as success exactly once.
	require.True(t, waitFor(func() bool {
		return len(payment.Handle().Completions()) == 1
	}, time.Second))
	assert.Equal(t, []bool{true}, payment.Handle().Completions())
}

func TestEngine_ExpressCancelKeepsCheckoutOpen(t *testing.T) {
	payment := &fakePayment{capable: true}
	e := testEngine(EngineDeps{Payment: payment})
	e.AddTicket("ga")
	require.NoError(t, e.GoToCheckout(context.Background()))

	e.ReportPaymentUICancelled()

	require.True(t, waitFor(func() bool {
		return e.State().Payment == models.PaymentCancelled
	}, time.Second))
	assert.Equal(t, models.ViewCheckout, e.State().View)

	// A token arriving after the cancel decision is dropped.
	e.OnTransaction(&status.Transaction{UUID: "tx-late", RefID: e.PaymentReference(), Token: "tok_late"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, models.PaymentCancelled, e.State().Payment)
	assert.Equal(t, models.ViewCheckout, e.State().View)
}

func TestEngine_CardPaymentWithoutAttemptIsSessionGone(t *testing.T) {
	e := testEngine(EngineDeps{})
	// Force the view to checkout without an attempt (restored session).
	e.RestoreSnapshot(&Snapshot{EventID: "event-1", View: models.ViewCheckout})

	err := e.SubmitCardPayment(context.Background(), models.CardDetails{
		HolderName: "Ada Lovelace",
		Number:     "4242424242424242",
		ExpMonth:   12,
		ExpYear:    2030,
		CVC:        "123",
	})
	assert.ErrorIs(t, err, status.ErrSessionGone)
}

func TestEngine_SnapshotRoundTrip(t *testing.T) {
	auth := &fakeAuth{existingToken: "tok-1"}
	e := testEngine(EngineDeps{Auth: auth})
	e.AddTicket("ga")
	e.AddTicket("vip")
	require.NoError(t, e.GoToCheckout(context.Background()))

	snap := e.Snapshot()
	assert.Equal(t, "event-1", snap.EventID)
	assert.Equal(t, models.Selection{"ga": 1, "vip": 1}, snap.Selection)
	assert.Equal(t, models.AuthAuthenticated, snap.AuthStatus)
	assert.Equal(t, models.ViewCheckout, snap.View)

	restored := testEngine(EngineDeps{})
	restored.RestoreSnapshot(&snap)

	st := restored.State()
	assert.Equal(t, models.ViewCheckout, st.View)
	assert.Equal(t, models.Selection{"ga": 1, "vip": 1}, st.Selection)
	assert.Equal(t, models.AuthAuthenticated, st.Auth)
}

func TestEngine_ApplyDispatch(t *testing.T) {
	e := testEngine(EngineDeps{})

	require.NoError(t, e.Apply(context.Background(), models.Command{Kind: models.CmdAddTicket, TicketTypeID: "ga"}))
	assert.Equal(t, models.Selection{"ga": 1}, e.State().Selection)

	require.NoError(t, e.Apply(context.Background(), models.Command{Kind: models.CmdRemoveTicket, TicketTypeID: "ga"}))
	assert.Empty(t, e.State().Selection)

	err := e.Apply(context.Background(), models.Command{Kind: "bogus"})
	assert.Error(t, err)

	err = e.Apply(context.Background(), models.Command{Kind: models.CmdSubmitCardPayment})
	var verr *status.ValidationError
	assert.ErrorAs(t, err, &verr)
}
