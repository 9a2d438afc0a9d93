package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.ItemSessionCompletedEvent{
		SessionID:   uuid.New(),
		OrderID:     orderID,
		ItemCount:   2,
		TotalAmount: 4800,
	})

	event := models.OutboxEvent{
		EventType:     enums.EventItemSessionCompleted,
		AggregateType: enums.AggregateItemSession,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Route.Topic != "sessions-topic" {
		t.Fatalf("unexpected topic %q", resolved.Route.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.ItemSessionCompletedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID || payload.TotalAmount != 4800 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected error without sessions topic")
	}
}

func TestEventRegistryResolveNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("order_archived"),
			AggregateType: enums.AggregateItemSession,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventItemSessionCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventItemSessionTerminated,
			AggregateType: enums.AggregateItemSession,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventItemSessionReset,
			AggregateType: enums.AggregateItemSession,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"unknown envelope version": {
			EventType:     enums.EventItemSessionStarted,
			AggregateType: enums.AggregateItemSession,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":9,"eventId":"x","data":{}}`),
		},
		"broken envelope": {
			EventType:     enums.EventItemSessionStarted,
			AggregateType: enums.AggregateItemSession,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":`),
		},
	}

	for name, event := range cases {
		_, err := reg.Resolve(event)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		var nonRetry NonRetryableError
		if !errors.As(err, &nonRetry) {
			t.Fatalf("%s: expected non-retryable error, got %T", name, err)
		}
	}
}

func TestResolveReadsUnversionedEnvelopeAsV1(t *testing.T) {
	reg := newTestEventRegistry(t)
	sessionID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventItemSessionReset,
		AggregateType: enums.AggregateItemSession,
		AggregateID:   sessionID,
		Payload:       json.RawMessage(`{"eventId":"legacy","data":{"session_id":"` + sessionID.String() + `","discarded_items":4}}`),
	}
	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Envelope.Version != 1 {
		t.Fatalf("expected version 1, got %d", resolved.Envelope.Version)
	}
	if reset := resolved.Payload.(*payloads.ItemSessionResetEvent); reset.DiscardedItems != 4 {
		t.Fatalf("unexpected payload %+v", reset)
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{SessionsTopic: "sessions-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
