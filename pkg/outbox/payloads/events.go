package payloads

import (
	"time"

	"github.com/google/uuid"
)

// ItemSessionStartedEvent is emitted once when an order's item session is created.
type ItemSessionStartedEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	OrderID   uuid.UUID `json:"order_id"`
	StartedAt time.Time `json:"started_at"`
}

// ItemSessionCompletedEvent carries the final item collection totals.
type ItemSessionCompletedEvent struct {
	SessionID   uuid.UUID `json:"session_id"`
	OrderID     uuid.UUID `json:"order_id"`
	ItemCount   int       `json:"item_count"`
	TotalAmount int64     `json:"total_amount_cents"`
	Currency    string    `json:"currency"`
	Version     int64     `json:"version"`
	CompletedAt time.Time `json:"completed_at"`
}

// ItemSessionResetEvent reports that all items of a session were discarded.
type ItemSessionResetEvent struct {
	SessionID      uuid.UUID `json:"session_id"`
	OrderID        uuid.UUID `json:"order_id"`
	DiscardedItems int       `json:"discarded_items"`
}

// ItemSessionTerminatedEvent reports the irrevocable release of a session.
type ItemSessionTerminatedEvent struct {
	SessionID    uuid.UUID `json:"session_id"`
	OrderID      uuid.UUID `json:"order_id"`
	TerminatedAt time.Time `json:"terminated_at"`
}
