package itemmanager

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/internal/itemsessions"
	"github.com/angelmondragon/orderflow-backend/internal/validation"
)

// RemoteStore is the authoritative session store the manager drives. Every
// mutation carries the caller's last seen version so stale writes are
// rejected by the store.
type RemoteStore interface {
	Initialize(ctx context.Context, orderID uuid.UUID) (*itemsessions.SessionDTO, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*itemsessions.SessionDTO, error)
	Synchronize(ctx context.Context, sessionID uuid.UUID) (*itemsessions.SessionDTO, error)
	AddItem(ctx context.Context, sessionID uuid.UUID, expectedVersion int64, input itemsessions.ItemInput) (*itemsessions.SessionDTO, error)
	UpdateItem(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64, input itemsessions.ItemInput) (*itemsessions.SessionDTO, error)
	DeleteItem(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error)
	StartWizard(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error)
	StartEditWizard(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error)
	CloseWizard(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error)
	Reset(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error)
	Terminate(ctx context.Context, sessionID uuid.UUID) error
	Validate(ctx context.Context, sessionID uuid.UUID) (*validation.Result, error)
	CheckReadiness(ctx context.Context, sessionID uuid.UUID) (*itemsessions.ReadinessDTO, error)
	CompleteStage(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error)
}

var _ RemoteStore = (itemsessions.Service)(nil)

// NewLocalStore exposes an in-process session service as a RemoteStore, for
// tools and tests that run next to the database.
func NewLocalStore(svc itemsessions.Service) RemoteStore {
	return svc
}
