package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgredis "github.com/angelmondragon/agrivet-pos/pkg/redis"
)

// SnapshotLine keeps what is needed to rebuild a cart line. Prices are not
// stored; they are resolved again against the catalog on restore.
type SnapshotLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	UnitName  string          `json:"unit_name"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Snapshot is the persisted state of an open session.
type Snapshot struct {
	SessionID string         `json:"session_id"`
	CashierID string         `json:"cashier_id"`
	OpenedAt  time.Time      `json:"opened_at"`
	Lines     []SnapshotLine `json:"lines"`
	SavedAt   time.Time      `json:"saved_at"`
}

// SnapshotStore persists open sessions so a restarted terminal can resume them.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, sessionID string) (Snapshot, bool, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

type redisStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AddMember(ctx context.Context, key, value string) error
	RemoveMember(ctx context.Context, key, value string) error
	Members(ctx context.Context, key string) ([]string, error)
	CartSnapshotKey(sessionID string) string
	OpenSessionsKey() string
}

// RedisSnapshotStore keeps snapshots as JSON values with a TTL.
type RedisSnapshotStore struct {
	client redisStore
	ttl    time.Duration
}

func NewRedisSnapshotStore(client redisStore, ttl time.Duration) (*RedisSnapshotStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisSnapshotStore{client: client, ttl: ttl}, nil
}

func (s *RedisSnapshotStore) Save(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.client.CartSnapshotKey(snap.SessionID), string(payload), s.ttl); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return s.client.AddMember(ctx, s.client.OpenSessionsKey(), snap.SessionID)
}

func (s *RedisSnapshotStore) Load(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	raw, err := s.client.Get(ctx, s.client.CartSnapshotKey(sessionID))
	if errors.Is(err, pkgredis.ErrNil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.client.CartSnapshotKey(sessionID)); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return s.client.RemoveMember(ctx, s.client.OpenSessionsKey(), sessionID)
}

// List returns the ids of sessions that still have a snapshot. Ids whose
// snapshot expired are pruned from the index as they are found.
func (s *RedisSnapshotStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.Members(ctx, s.client.OpenSessionsKey())
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		_, ok, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			_ = s.client.RemoveMember(ctx, s.client.OpenSessionsKey(), id)
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
