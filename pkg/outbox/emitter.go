// Package outbox queues domain events in the writer's transaction and hands
// them to the publisher process through the outbox_events table.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
)

const lifecycleConstraint = "ux_outbox_events_event_aggregate"

// Event is a fact about an aggregate, queued by Emit.
type Event struct {
	Type        enums.OutboxEventType
	Aggregate   enums.OutboxAggregateType
	AggregateID uuid.UUID
	Source      *Source
	Data        any
	// SchemaVersion of Data; zero means 1.
	SchemaVersion int
	OccurredAt    time.Time
}

// Emitter writes events next to the state change they describe.
type Emitter struct {
	repo    *Repository
	logg    *logger.Logger
	metrics *metrics.OutboxMetrics
}

func NewEmitter(repo *Repository, logg *logger.Logger, m *metrics.OutboxMetrics) *Emitter {
	return &Emitter{repo: repo, logg: logg, metrics: m}
}

// Emit stores the event inside tx so it commits or rolls back with the caller.
// Lifecycle events (session started, session completed) exist at most once
// per aggregate; a second emit of one is a silent no-op, which keeps retried
// Initialize and CompleteStage calls from publishing twice.
func (e *Emitter) Emit(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !event.Type.IsValid() || !event.Aggregate.IsValid() {
		return fmt.Errorf("unknown event %s/%s", event.Aggregate, event.Type)
	}
	if event.AggregateID == uuid.Nil {
		return fmt.Errorf("%s: aggregate id required", event.Type)
	}

	once := event.Type.OncePerAggregate()
	if once {
		exists, err := e.repo.Exists(tx, event.Type, event.AggregateID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}

	envelope, err := e.envelope(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event.Type, err)
	}
	row := newRow(event, payload)
	if err := e.repo.Insert(tx, row); err != nil {
		if once && dbpkg.IsUniqueViolation(err, lifecycleConstraint) {
			return nil
		}
		return err
	}

	e.metrics.IncQueued(string(event.Type))
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     event.Type,
		"aggregate_type": event.Aggregate,
		"aggregate_id":   event.AggregateID.String(),
	}), "outbox event queued")
	return nil
}

func (e *Emitter) envelope(event Event) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("marshal %s payload: %w", event.Type, err)
	}
	version := event.SchemaVersion
	if version == 0 {
		version = 1
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: occurred.UTC(),
		Source:     event.Source,
		Data:       data,
	}, nil
}
