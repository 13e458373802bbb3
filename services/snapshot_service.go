package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"checkout-system/internal/status"
	"checkout-system/models"
)

// Snapshot is the persisted slice of one checkout session: ledger, auth and
// view plus an expiry stamp, keyed by event identifier.
type Snapshot struct {
	EventID     string
	Selection   models.Selection
	AuthStatus  models.AuthStatus
	AccessToken string
	View        models.ViewState
	SavedAt     time.Time
	ExpiresAt   time.Time
}

// SnapshotStore caches session snapshots in Redis so a reloading client
// resumes where it left off. A snapshot is adopted only when it has not
// expired and its event identifier matches.
type SnapshotStore struct {
	Redis *redis.Client
	ttl   time.Duration
}

func NewSnapshotStore(redisClient *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{Redis: redisClient, ttl: ttl}
}

func snapshotKey(sessionID string) string {
	return fmt.Sprintf("checkout:snapshot:%s", sessionID)
}

func (s *SnapshotStore) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	selData, err := json.Marshal(snap.Selection)
	if err != nil {
		return err
	}

	now := time.Now()
	key := snapshotKey(sessionID)
	if err := s.Redis.HSet(ctx, key,
		"event_id", snap.EventID,
		"selection", string(selData),
		"auth_status", string(snap.AuthStatus),
		"access_token", snap.AccessToken,
		"view", string(snap.View),
		"saved_at", now.Unix(),
		"expires_at", now.Add(s.ttl).Unix(),
	).Err(); err != nil {
		return err
	}

	return s.Redis.Expire(ctx, key, s.ttl).Err()
}

// Load returns the stored snapshot, or status.ErrSessionGone when there is
// none, it expired, or it belongs to a different event.
func (s *SnapshotStore) Load(ctx context.Context, sessionID, eventID string) (*Snapshot, error) {
	key := snapshotKey(sessionID)

	data, err := s.Redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, status.ErrSessionGone
	}

	if data["event_id"] != eventID {
		return nil, status.ErrSessionGone
	}

	expiresAt, _ := strconv.ParseInt(data["expires_at"], 10, 64)
	if expiresAt <= time.Now().Unix() {
		s.Redis.Del(ctx, key)
		return nil, status.ErrSessionGone
	}

	var sel models.Selection
	if raw := data["selection"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &sel); err != nil {
			log.Printf("Error parsing snapshot selection for %s: %v", sessionID, err)
			sel = nil
		}
	}

	savedAt, _ := strconv.ParseInt(data["saved_at"], 10, 64)

	return &Snapshot{
		EventID:     data["event_id"],
		Selection:   sel,
		AuthStatus:  models.AuthStatus(data["auth_status"]),
		AccessToken: data["access_token"],
		View:        models.ViewState(data["view"]),
		SavedAt:     time.Unix(savedAt, 0),
		ExpiresAt:   time.Unix(expiresAt, 0),
	}, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, sessionID string) error {
	return s.Redis.Del(ctx, snapshotKey(sessionID)).Err()
}
