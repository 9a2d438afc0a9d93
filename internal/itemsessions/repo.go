package itemsessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// Repository persists item sessions and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a session repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) SessionRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a session without its items.
func (r *Repository) Create(ctx context.Context, session *models.ItemSession) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(session).Error
}

// Save updates the session row. Items are written through the item methods.
func (r *Repository) Save(ctx context.Context, session *models.ItemSession) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(session).Error
}

// FindByID loads a session with its items in position order.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ItemSession, error) {
	return r.find(r.db.WithContext(ctx), "id = ?", id)
}

// FindByIDForUpdate loads a session and locks its row for the transaction.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ItemSession, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

// FindByOrderID loads the session of an order.
func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.ItemSession, error) {
	return r.find(r.db.WithContext(ctx), "order_id = ?", orderID)
}

func (r *Repository) find(q *gorm.DB, where string, arg any) (*models.ItemSession, error) {
	var session models.ItemSession
	err := q.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where(where, arg).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateItem inserts an item.
func (r *Repository) CreateItem(ctx context.Context, item *models.SessionItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// SaveItem updates an item.
func (r *Repository) SaveItem(ctx context.Context, item *models.SessionItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DeleteItem removes one item of a session.
func (r *Repository) DeleteItem(ctx context.Context, sessionID, itemID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND session_id = ?", itemID, sessionID).
		Delete(&models.SessionItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteItems removes every item of a session.
func (r *Repository) DeleteItems(ctx context.Context, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.SessionItem{}).Error
}

// Delete removes a session and its items.
func (r *Repository) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if err := r.DeleteItems(ctx, sessionID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", sessionID).
		Delete(&models.ItemSession{}).Error
}

// FindAbandonedBefore lists unfinished sessions untouched since cutoff, oldest
// first. Items are not loaded.
func (r *Repository) FindAbandonedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ItemSession, error) {
	var rows []models.ItemSession
	q := r.db.WithContext(ctx).
		Where("state <> ? AND updated_at < ?", enums.SessionStateCompleted, cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
