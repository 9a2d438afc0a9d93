package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateItemSession OutboxAggregateType = "item_session"
	AggregateOrder       OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateItemSession,
	AggregateOrder,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventItemSessionStarted    OutboxEventType = "item_session_started"
	EventItemSessionCompleted  OutboxEventType = "item_session_completed"
	EventItemSessionReset      OutboxEventType = "item_session_reset"
	EventItemSessionTerminated OutboxEventType = "item_session_terminated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventItemSessionStarted,
	EventItemSessionCompleted,
	EventItemSessionReset,
	EventItemSessionTerminated,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// OncePerAggregate reports whether at most one event of this type may exist
// per aggregate. Mirrors the partial unique index on outbox_events.
func (e OutboxEventType) OncePerAggregate() bool {
	return e == EventItemSessionStarted || e == EventItemSessionCompleted
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
