package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"checkout-system/internal/status"
	"checkout-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthGate_ExistingSession(t *testing.T) {
	notifier := NewMemoryNotifier()
	g := NewAuthGate(&fakeAuth{existingToken: "tok-1"}, notifier, "s1")

	token, err := g.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, models.AuthAuthenticated, g.State().Status)

	n, ok := notifier.Last(models.NotifyAuthChanged)
	require.True(t, ok)
	assert.Equal(t, models.AuthAuthenticated, n.Auth)
}

func TestAuthGate_InteractiveLogin(t *testing.T) {
	provider := &fakeAuth{existingErr: status.ErrNoSession, loginToken: "tok-login"}
	g := NewAuthGate(provider, NewMemoryNotifier(), "s1")

	token, err := g.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-login", token)
	assert.Equal(t, 1, provider.LoginCalls())

	// Second call uses the cached state, no new prompt.
	_, err = g.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, provider.LoginCalls())
}

func TestAuthGate_DeclinedLogin(t *testing.T) {
	provider := &fakeAuth{existingErr: status.ErrNoSession, loginErr: status.ErrNoSession}
	g := NewAuthGate(provider, NewMemoryNotifier(), "s1")

	_, err := g.EnsureAuthenticated(context.Background())
	assert.ErrorIs(t, err, status.ErrDeclined)
	assert.Equal(t, models.AuthUnauthenticated, g.State().Status)
}

func TestAuthGate_PendingWhilePromptOpen(t *testing.T) {
	provider := &fakeAuth{existingErr: status.ErrNoSession, loginToken: "tok-1", loginDelay: 100 * time.Millisecond}
	g := NewAuthGate(provider, NewMemoryNotifier(), "s1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.EnsureAuthenticated(context.Background())
	}()

	require.True(t, waitFor(func() bool {
		return g.State().Status == models.AuthPending
	}, time.Second))

	<-done
	assert.Equal(t, models.AuthAuthenticated, g.State().Status)
}

func TestAuthGate_ProviderError(t *testing.T) {
	provider := &fakeAuth{existingErr: errProviderDown}
	g := NewAuthGate(provider, NewMemoryNotifier(), "s1")

	_, err := g.EnsureAuthenticated(context.Background())
	assert.ErrorIs(t, err, errProviderDown)
}

func TestAuthGate_ConcurrentCallersShareOnePrompt(t *testing.T) {
	provider := &fakeAuth{
		existingErr: status.ErrNoSession,
		loginToken:  "tok-login",
		loginDelay:  50 * time.Millisecond,
	}
	g := NewAuthGate(provider, NewMemoryNotifier(), "s1")

	var wg sync.WaitGroup
	tokens := make([]string, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := g.EnsureAuthenticated(context.Background())
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, provider.LoginCalls())
	for _, tok := range tokens {
		assert.Equal(t, "tok-login", tok)
	}
}

func TestAuthGate_CallerContextCancelDoesNotKillPrompt(t *testing.T) {
	provider := &fakeAuth{
		existingErr: status.ErrNoSession,
		loginToken:  "tok-login",
		loginDelay:  50 * time.Millisecond,
	}
	g := NewAuthGate(provider, NewMemoryNotifier(), "s1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.EnsureAuthenticated(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The prompt keeps running and its outcome is adopted.
	require.True(t, waitFor(func() bool {
		return g.State().Status == models.AuthAuthenticated
	}, time.Second))
}

func TestAuthGate_Restore(t *testing.T) {
	g := NewAuthGate(&fakeAuth{}, NewMemoryNotifier(), "s1")

	g.Restore(models.AuthState{Status: models.AuthAuthenticated, AccessToken: "tok-cached"})
	assert.Equal(t, "tok-cached", g.State().AccessToken)

	// An unauthenticated snapshot is not adopted over the zero state.
	g2 := NewAuthGate(&fakeAuth{}, NewMemoryNotifier(), "s2")
	g2.Restore(models.AuthState{Status: models.AuthUnauthenticated})
	assert.Equal(t, models.AuthUnauthenticated, g2.State().Status)
}
