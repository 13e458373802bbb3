package services

import (
	"fmt"
	"log"
	"sync"

	pubnub "github.com/pubnub/go"

	"checkout-system/models"
)

// Notifier publishes outbound notifications for observers (UI, logging).
// Publishing is fire-and-forget: a failed publish never affects the engine.
type Notifier interface {
	Publish(sessionID string, n models.Notification)
}

type PubNubNotifier struct {
	pn *pubnub.PubNub
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{pn: pn}
}

func (p *PubNubNotifier) Publish(sessionID string, n models.Notification) {
	channel := fmt.Sprintf("user-%s", sessionID)

	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(n).
		Execute()
	if err != nil {
		log.Printf("Error publishing %s to %s: %v", n.Kind, channel, err)
	}
}

// MemoryNotifier records notifications for tests.
type MemoryNotifier struct {
	mu     sync.Mutex
	events []models.Notification
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (m *MemoryNotifier) Publish(_ string, n models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, n)
}

func (m *MemoryNotifier) Events() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Notification, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryNotifier) Last(kind models.NotificationKind) (models.Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Kind == kind {
			return m.events[i], true
		}
	}
	return models.Notification{}, false
}
