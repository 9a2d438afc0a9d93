package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
)

// Decoder turns the data of an envelope into a typed payload.
type Decoder func(data json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry resolves versioned payload decoders on the consumer side.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	decoders map[decoderKey]Decoder
}

// NewDecoderRegistry builds an empty decoder registry.
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]Decoder)}
}

// SessionDecoders returns a registry preloaded with version 1 of every item
// session event.
func SessionDecoders() *DecoderRegistry {
	r := NewDecoderRegistry()
	RegisterJSON[payloads.ItemSessionStartedEvent](r, enums.EventItemSessionStarted, 1)
	RegisterJSON[payloads.ItemSessionCompletedEvent](r, enums.EventItemSessionCompleted, 1)
	RegisterJSON[payloads.ItemSessionResetEvent](r, enums.EventItemSessionReset, 1)
	RegisterJSON[payloads.ItemSessionTerminatedEvent](r, enums.EventItemSessionTerminated, 1)
	return r
}

// Register stores a decoder for the given event type and version.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder Decoder) {
	if decoder == nil {
		return
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.decoders[decoderKey{eventType: eventType, version: version}] = decoder
}

// RegisterJSON registers a decoder that unmarshals into *T.
func RegisterJSON[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int) {
	r.Register(eventType, version, func(data json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(data, out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Has reports whether a decoder exists for the event type and version.
func (r *DecoderRegistry) Has(eventType enums.OutboxEventType, version int) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	_, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	return ok
}

// Decode runs the decoder registered for the event type and version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	r.mtx.RLock()
	decoder, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("decoder not registered for %s@v%d", eventType, version))
	}
	payload, err := decoder(data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s@v%d: %w", eventType, version, err))
	}
	return payload, nil
}

// DecodeMessage parses a published envelope and decodes its data.
func (r *DecoderRegistry) DecodeMessage(eventType enums.OutboxEventType, raw []byte) (outbox.PayloadEnvelope, any, error) {
	envelope, err := outbox.ParseEnvelope(raw)
	if err != nil {
		return envelope, nil, NewNonRetryableError(err)
	}
	payload, err := r.Decode(eventType, envelope.Version, envelope.Data)
	return envelope, payload, err
}
