package itemsessions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// SessionRepository defines the persistence surface required by the service.
type SessionRepository interface {
	WithTx(tx *gorm.DB) SessionRepository
	Create(ctx context.Context, session *models.ItemSession) error
	Save(ctx context.Context, session *models.ItemSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ItemSession, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ItemSession, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.ItemSession, error)
	CreateItem(ctx context.Context, item *models.SessionItem) error
	SaveItem(ctx context.Context, item *models.SessionItem) error
	DeleteItem(ctx context.Context, sessionID, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, sessionID uuid.UUID) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
}
