package services

import (
	"context"
	"errors"
	"log"
	"sync"

	"checkout-system/internal/providers"
	"checkout-system/internal/status"
	"checkout-system/models"
)

type loginAttempt struct {
	done  chan struct{}
	token string
	err   error
}

// AuthGate wraps the external authentication provider behind three outcomes:
// already-authenticated, not-authenticated (declined), error. At most one
// interactive login prompt is open at a time; concurrent callers join the
// same attempt instead of opening a second prompt.
type AuthGate struct {
	mu        sync.Mutex
	state     models.AuthState
	pending   *loginAttempt
	provider  providers.AuthProvider
	notifier  Notifier
	sessionID string
}

func NewAuthGate(provider providers.AuthProvider, notifier Notifier, sessionID string) *AuthGate {
	return &AuthGate{
		state:     models.AuthState{Status: models.AuthUnauthenticated},
		provider:  provider,
		notifier:  notifier,
		sessionID: sessionID,
	}
}

// EnsureAuthenticated returns an access token, running the interactive login
// if there is no existing session. A user closing the prompt yields
// status.ErrDeclined, which callers treat as a silent abort.
func (g *AuthGate) EnsureAuthenticated(ctx context.Context) (string, error) {
	g.mu.Lock()
	if g.state.Status == models.AuthAuthenticated {
		token := g.state.AccessToken
		g.mu.Unlock()
		return token, nil
	}
	g.mu.Unlock()

	token, err := g.provider.CheckExistingSession(ctx)
	switch {
	case err == nil:
		g.setAuthenticated(token)
		return token, nil
	case errors.Is(err, status.ErrNoSession):
		return g.interactiveLogin(ctx)
	default:
		return "", err
	}
}

func (g *AuthGate) interactiveLogin(ctx context.Context) (string, error) {
	g.mu.Lock()
	attempt := g.pending
	if attempt == nil {
		attempt = &loginAttempt{done: make(chan struct{})}
		g.pending = attempt
		g.state.Status = models.AuthPending

		// The prompt belongs to the session, not to the request that
		// happened to open it, so it is not tied to the caller's ctx.
		go g.runInteractiveLogin(attempt)
	}
	g.mu.Unlock()

	select {
	case <-attempt.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	switch {
	case attempt.err == nil:
		return attempt.token, nil
	case errors.Is(attempt.err, status.ErrNoSession):
		return "", status.ErrDeclined
	default:
		return "", attempt.err
	}
}

func (g *AuthGate) runInteractiveLogin(attempt *loginAttempt) {
	token, err := g.provider.InteractiveLogin(context.Background())

	attempt.token = token
	attempt.err = err

	g.mu.Lock()
	g.pending = nil
	g.mu.Unlock()

	switch {
	case err == nil:
		g.setAuthenticated(token)
	case errors.Is(err, status.ErrNoSession):
		g.setUnauthenticated()
		log.Printf("Interactive login declined for session %s", g.sessionID)
	default:
		g.setUnauthenticated()
		log.Printf("Interactive login failed for session %s: %v", g.sessionID, err)
	}

	// Waiters observe the settled state, not the pending one.
	close(attempt.done)
}

func (g *AuthGate) setUnauthenticated() {
	g.mu.Lock()
	g.state = models.AuthState{Status: models.AuthUnauthenticated}
	g.mu.Unlock()
}

func (g *AuthGate) setAuthenticated(token string) {
	g.mu.Lock()
	already := g.state.Status == models.AuthAuthenticated
	g.state = models.AuthState{Status: models.AuthAuthenticated, AccessToken: token}
	g.mu.Unlock()

	if !already {
		g.notifier.Publish(g.sessionID, models.Notification{
			Kind: models.NotifyAuthChanged,
			Auth: models.AuthAuthenticated,
		})
	}
}

func (g *AuthGate) State() models.AuthState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Restore adopts a persisted auth state (session snapshot cache).
func (g *AuthGate) Restore(state models.AuthState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if state.Status == models.AuthAuthenticated && state.AccessToken != "" {
		g.state = state
	}
}
