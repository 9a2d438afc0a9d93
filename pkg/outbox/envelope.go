package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyPayload marks an envelope whose data is missing or null.
var ErrEmptyPayload = errors.New("envelope carries no data")

// Source identifies the request that produced the event.
type Source struct {
	Service   string     `json:"service"`
	RequestID string     `json:"requestId,omitempty"`
	OrderID   *uuid.UUID `json:"orderId,omitempty"`
}

// PayloadEnvelope is stored verbatim in outbox_events.payload and published
// as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Source     *Source         `json:"source,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ParseEnvelope reads an envelope from a row or a message. Envelopes written
// before versioning carry no version and are read as version 1.
func ParseEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version == 0 {
		env.Version = 1
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, ErrEmptyPayload
	}
	return env, nil
}
