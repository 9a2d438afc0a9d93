package navigation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/angelmondragon/orderflow-backend/pkg/redis"
)

// RedisStore keeps navigation state as JSON under a per-order key.
type RedisStore struct {
	client pkgredis.NavigationStore
	ttl    time.Duration
}

// NewRedisStore binds the store to a redis client. A zero ttl keeps keys forever.
func NewRedisStore(client pkgredis.NavigationStore, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) Load(ctx context.Context, orderID uuid.UUID) (*State, error) {
	raw, err := r.client.Get(ctx, r.client.NavigationKey(orderID.String()))
	if err != nil {
		if pkgredis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load navigation state: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode navigation state: %w", err)
	}
	if state.OrderID != orderID {
		return nil, fmt.Errorf("navigation state belongs to order %s", state.OrderID)
	}
	return &state, nil
}

func (r *RedisStore) Save(ctx context.Context, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode navigation state: %w", err)
	}
	if err := r.client.Set(ctx, r.client.NavigationKey(state.OrderID.String()), string(payload), r.ttl); err != nil {
		return fmt.Errorf("save navigation state: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, orderID uuid.UUID) error {
	return r.client.Del(ctx, r.client.NavigationKey(orderID.String()))
}
