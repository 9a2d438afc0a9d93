package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

func TestDeletePublishedBefore(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -40)
	recent := now.AddDate(0, 0, -1)

	insert := func(created time.Time, published *time.Time, attempts int, eventType enums.OutboxEventType) uuid.UUID {
		row := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     eventType,
			AggregateType: enums.AggregateItemSession,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     created,
			PublishedAt:   published,
			AttemptCount:  attempts,
		}
		require.NoError(t, repo.Insert(conn, row))
		return row.ID
	}
	insert(old, &old, 0, enums.EventItemSessionReset)
	keptRecent := insert(recent, &recent, 0, enums.EventItemSessionReset)
	insert(old, nil, 10, enums.EventItemSessionTerminated)
	keptPending := insert(old, nil, 3, enums.EventItemSessionTerminated)

	deleted, err := repo.DeletePublishedBefore(context.Background(), conn, now.AddDate(0, 0, -30), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Order("created_at DESC").Find(&remaining).Error)
	ids := []uuid.UUID{}
	for _, r := range remaining {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{keptRecent, keptPending}, ids)
}

func TestDeletePublishedBeforeRequiresTx(t *testing.T) {
	_, err := NewRepository(nil).DeletePublishedBefore(context.Background(), nil, time.Now(), 0)
	assert.Error(t, err)
}
