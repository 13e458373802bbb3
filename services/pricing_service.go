package services

import (
	"context"
	"errors"
	"log"
	"sync"

	"checkout-system/internal/providers"
	"checkout-system/models"
	"checkout-system/utils"
)

// errQuoteSuperseded marks a pricing result that arrived after a newer
// request had already been issued. The result is dropped, not surfaced.
var errQuoteSuperseded = errors.New("pricing: quote superseded by newer request")

// PricingStage requests order totals from the external pricing service. A
// new request supersedes any prior outstanding one without cancelling it:
// the older call runs to completion and its result is dropped here.
type PricingStage struct {
	mu      sync.Mutex
	gen     uint64
	last    *models.OrderQuote
	client  providers.PricingClient
	breaker *utils.CircuitBreaker
	eventID string
}

func NewPricingStage(client providers.PricingClient, eventID string) *PricingStage {
	return &PricingStage{
		client:  client,
		breaker: utils.NewCircuitBreaker("pricing"),
		eventID: eventID,
	}
}

// Quote prices the given selection snapshot and returns the quote, or
// errQuoteSuperseded when a newer request was issued while this one was in
// flight.
func (s *PricingStage) Quote(ctx context.Context, sel models.Selection) (*models.OrderQuote, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	res, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.client.Quote(ctx, s.eventID, sel)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		// The losing branch completed anyway; only its result is dropped.
		log.Printf("Dropping superseded pricing result for event %s (gen %d < %d)", s.eventID, gen, s.gen)
		return nil, errQuoteSuperseded
	}
	if err != nil {
		return nil, err
	}

	quote, ok := res.(*models.OrderQuote)
	if !ok || quote == nil {
		return nil, errors.New("pricing: empty quote from provider")
	}
	quote.Fingerprint = models.SelectionFingerprint(sel)
	s.last = quote
	return quote, nil
}

// Last returns the most recent non-superseded quote, if any.
func (s *PricingStage) Last() *models.OrderQuote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
