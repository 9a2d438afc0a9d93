package registry

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
)

// Route says which aggregate emits an event type and where it is published.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row checked against its route with the payload
// decoded by the same decoders consumers use.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// EventRegistry is the publisher side view of the event catalogue.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]Route
	decoders *DecoderRegistry
}

// NonRetryableError tells the publisher to dead-letter the row at once.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry routes every item session event to the sessions topic.
// Each route must have a decoder for the current envelope version, so a
// producer can never queue an event its consumers cannot read.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.SessionsTopic == "" {
		return nil, fmt.Errorf("sessions topic is required")
	}
	reg := &EventRegistry{
		routes:   make(map[enums.OutboxEventType]Route),
		decoders: SessionDecoders(),
	}
	for _, eventType := range []enums.OutboxEventType{
		enums.EventItemSessionStarted,
		enums.EventItemSessionCompleted,
		enums.EventItemSessionReset,
		enums.EventItemSessionTerminated,
	} {
		if !reg.decoders.Has(eventType, 1) {
			return nil, fmt.Errorf("no v1 decoder for %s", eventType)
		}
		reg.routes[eventType] = Route{
			EventType:     eventType,
			AggregateType: enums.AggregateItemSession,
			Topic:         cfg.SessionsTopic,
		}
	}
	return reg, nil
}

// Resolve validates a row before it is published. Every failure is
// non-retryable: the row will never become publishable by waiting.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if route.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", route.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}
	envelope, err := outbox.ParseEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, err
	}
	return &ResolvedEvent{Route: route, Envelope: envelope, Payload: payload}, nil
}
