package services

import (
	"context"
	"log"
	"sync"

	"checkout-system/internal/status"
	"checkout-system/models"
	"checkout-system/monitoring"
)

// Manager owns the live engine sessions, keyed by user and event, and
// routes provider-side payment transactions to the session that issued the
// matching reference.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Engine

	deps      EngineDeps
	snapshots *SnapshotStore
}

func NewManager(deps EngineDeps, snapshots *SnapshotStore) *Manager {
	return &Manager{
		sessions:  make(map[string]*Engine),
		deps:      deps,
		snapshots: snapshots,
	}
}

func SessionID(userID, eventID string) string {
	return userID + ":" + eventID
}

// GetOrCreate returns the live engine for a user and event, creating it and
// adopting any unexpired snapshot on first use.
func (m *Manager) GetOrCreate(ctx context.Context, userID, eventID string, types []models.TicketType) *Engine {
	id := SessionID(userID, eventID)

	m.mu.Lock()
	if engine, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return engine
	}
	engine := NewEngine(id, eventID, types, m.deps)
	m.sessions[id] = engine
	m.mu.Unlock()

	monitoring.SessionOpened()

	if m.snapshots != nil {
		snap, err := m.snapshots.Load(ctx, id, eventID)
		switch err {
		case nil:
			engine.RestoreSnapshot(snap)
		case status.ErrSessionGone:
		default:
			log.Printf("Error loading snapshot for %s: %v", id, err)
		}
	}
	return engine
}

func (m *Manager) Get(sessionID string) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	engine, ok := m.sessions[sessionID]
	if !ok {
		return nil, status.ErrSessionGone
	}
	return engine, nil
}

// Persist writes the engine's snapshot to the cache.
func (m *Manager) Persist(ctx context.Context, engine *Engine) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.Save(ctx, engine.SessionID, engine.Snapshot()); err != nil {
		log.Printf("Error saving snapshot for %s: %v", engine.SessionID, err)
	}
}

func (m *Manager) Remove(ctx context.Context, sessionID string) {
	m.mu.Lock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		monitoring.SessionClosed()
	}
	if m.snapshots != nil {
		if err := m.snapshots.Delete(ctx, sessionID); err != nil {
			log.Printf("Error deleting snapshot for %s: %v", sessionID, err)
		}
	}
}

// States returns a read-only projection of every live session, for the ops
// endpoints.
func (m *Manager) States() map[string]EngineState {
	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.sessions))
	for _, e := range m.sessions {
		engines = append(engines, e)
	}
	m.mu.Unlock()

	out := make(map[string]EngineState, len(engines))
	for _, e := range engines {
		out[e.SessionID] = e.State()
	}
	return out
}

// DispatchTransactions consumes the payment provider's notification channel
// and hands each transaction to the session whose active attempt issued the
// matching reference.
func (m *Manager) DispatchTransactions(ctx context.Context, ch chan *status.Transaction) {
	for {
		select {
		case <-ctx.Done():
			return
		case tx := <-ch:
			if tx == nil {
				continue
			}
			if engine := m.findByReference(tx.RefID); engine != nil {
				engine.OnTransaction(tx)
			} else {
				log.Printf("Dropping payment transaction %s: no session for ref %s", tx.UUID, tx.RefID)
			}
		}
	}
}

func (m *Manager) findByReference(ref string) *Engine {
	if ref == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, engine := range m.sessions {
		if engine.PaymentReference() == ref {
			return engine
		}
	}
	return nil
}
