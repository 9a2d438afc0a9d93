// Package idempotency lets event consumers claim an event before handling it
// so redelivered messages are applied once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/redis"
)

const (
	markerProcessing = "processing"
	markerDone       = "done"

	defaultProcessingTTL = 2 * time.Minute
)

// Outcome is the result of a claim attempt.
type Outcome int

const (
	// Claimed means the caller owns the event and must Complete or Release it.
	Claimed Outcome = iota
	// Duplicate means the event was already handled.
	Duplicate
	// InFlight means another consumer holds an unexpired claim.
	InFlight
)

func (o Outcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case Duplicate:
		return "duplicate"
	case InFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Store is the redis surface the guard needs.
type Store = redis.IdempotencyStore

// Guard records per-consumer event claims under
// `of:idempotency:evt:<consumer>:<event_id>`. A claim expires after the
// processing TTL so a crashed consumer does not block redelivery forever.
type Guard struct {
	store         Store
	processingTTL time.Duration
	doneTTL       time.Duration
}

// NewGuard builds a guard remembering handled events for doneTTL.
func NewGuard(store Store, doneTTL, processingTTL time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if doneTTL < 0 || processingTTL < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if processingTTL == 0 {
		processingTTL = defaultProcessingTTL
	}
	return &Guard{store: store, processingTTL: processingTTL, doneTTL: doneTTL}, nil
}

// Claim tries to take ownership of eventID for consumer.
func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Outcome, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return InFlight, err
	}
	ok, err := g.store.SetNX(ctx, key, markerProcessing, g.processingTTL)
	if err != nil {
		return InFlight, fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return Claimed, nil
	}
	marker, err := g.store.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			// expired between SETNX and GET; let the broker redeliver
			return InFlight, nil
		}
		return InFlight, fmt.Errorf("read claim %s: %w", key, err)
	}
	if marker == markerDone {
		return Duplicate, nil
	}
	return InFlight, nil
}

// Complete marks a claimed event as handled.
func (g *Guard) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Set(ctx, key, markerDone, g.doneTTL)
}

// Release drops a claim so the event can be retried.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
