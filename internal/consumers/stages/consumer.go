// Package stages projects item session events onto the durable navigation
// state of their order.
package stages

import (
	"context"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/internal/itemmanager"
	"github.com/angelmondragon/orderflow-backend/internal/navigation"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/registry"
)

const consumerName = "stage-projector"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.Outcome, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer marks the items stage completed when a session completes and
// drops the navigation state when a session is terminated.
type Consumer struct {
	store        navigation.StateStore
	subscription receiver
	guard        claimer
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
	navOpts      []navigation.Option
}

// NewConsumer builds the stage projector. navOpts are applied to every
// navigator it loads.
func NewConsumer(store navigation.StateStore, subscription receiver, guard claimer, decoders *registry.DecoderRegistry, logg *logger.Logger, navOpts ...navigation.Option) (*Consumer, error) {
	if store == nil {
		return nil, fmt.Errorf("navigation store required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("sessions subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if decoders == nil {
		return nil, fmt.Errorf("decoder registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		store:        store,
		subscription: subscription,
		guard:        guard,
		decoders:     decoders,
		logg:         logg,
		navOpts:      navOpts,
	}, nil
}

// Run receives messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
		"consumer":   consumerName,
	})

	if eventType != enums.EventItemSessionCompleted && eventType != enums.EventItemSessionTerminated {
		c.logg.Debug(logCtx, "event not projected")
		return processResult{ack: true}
	}

	envelope, payload, err := c.decoders.DecodeMessage(eventType, msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode session event", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	outcome, err := c.guard.Claim(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return processResult{nack: true}
	}
	switch outcome {
	case idempotency.Duplicate:
		c.logg.Info(logCtx, "event already projected")
		return processResult{ack: true}
	case idempotency.InFlight:
		c.logg.Info(logCtx, "event claimed by another worker")
		return processResult{nack: true}
	}

	if err := c.apply(logCtx, payload); err != nil {
		c.logg.Error(logCtx, "stage projection failed", err)
		if relErr := c.guard.Release(ctx, consumerName, eventID); relErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency claim", relErr)
		}
		return processResult{nack: true}
	}
	if err := c.guard.Complete(ctx, consumerName, eventID); err != nil {
		// projection is repeatable; a redelivery converges to the same state
		c.logg.Error(logCtx, "failed to mark event projected", err)
	}
	return processResult{ack: true}
}

func (c *Consumer) apply(ctx context.Context, payload any) error {
	switch event := payload.(type) {
	case *payloads.ItemSessionCompletedEvent:
		return c.completeItemsStage(ctx, event)
	case *payloads.ItemSessionTerminatedEvent:
		if event.OrderID == uuid.Nil {
			return fmt.Errorf("order id missing")
		}
		if err := c.store.Delete(ctx, event.OrderID); err != nil {
			return fmt.Errorf("delete navigation state: %w", err)
		}
		c.logg.Info(c.logg.WithOrderID(ctx, event.OrderID.String()), "navigation state dropped")
		return nil
	default:
		return fmt.Errorf("unexpected payload %T", payload)
	}
}

func (c *Consumer) completeItemsStage(ctx context.Context, event *payloads.ItemSessionCompletedEvent) error {
	if event.OrderID == uuid.Nil {
		return fmt.Errorf("order id missing")
	}
	store := &recordingStore{StateStore: c.store}
	opts := append([]navigation.Option{navigation.WithStore(store)}, c.navOpts...)
	nav := navigation.New(event.OrderID, opts...)
	nav.Load(ctx)
	if store.err != nil {
		return store.err
	}
	if ok, res := nav.CompleteStage(ctx, itemmanager.ItemStage); !ok {
		return fmt.Errorf("complete items stage: %v", res.Errors)
	}
	if store.err != nil {
		return store.err
	}
	logCtx := c.logg.WithOrderID(ctx, event.OrderID.String())
	logCtx = c.logg.WithStage(logCtx, nav.CurrentStage())
	c.logg.Info(logCtx, "items stage completed")
	return nil
}

// recordingStore keeps the first persistence error the navigator swallows.
type recordingStore struct {
	navigation.StateStore
	err error
}

func (r *recordingStore) Load(ctx context.Context, orderID uuid.UUID) (*navigation.State, error) {
	state, err := r.StateStore.Load(ctx, orderID)
	r.record(err)
	return state, err
}

func (r *recordingStore) Save(ctx context.Context, state navigation.State) error {
	err := r.StateStore.Save(ctx, state)
	r.record(err)
	return err
}

func (r *recordingStore) record(err error) {
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("navigation store: %w", err)
	}
}
