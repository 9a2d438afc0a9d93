package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// Repository reads catalog reference data.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListActiveModifiers returns every active modifier in display order.
func (r *Repository) ListActiveModifiers(ctx context.Context) ([]models.Modifier, error) {
	var rows []models.Modifier
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order ASC").
		Order("code ASC").
		Find(&rows).Error
	return rows, err
}

// ListPriceListItems returns active price list entries, optionally filtered by category.
func (r *Repository) ListPriceListItems(ctx context.Context, categoryCode string) ([]models.PriceListItem, error) {
	var rows []models.PriceListItem
	query := r.db.WithContext(ctx).Where("active = ?", true)
	if categoryCode != "" {
		query = query.Where("category_code = ?", categoryCode)
	}
	err := query.Order("category_code ASC").Order("name ASC").Find(&rows).Error
	return rows, err
}

// FindPriceListItem loads one entry by id.
func (r *Repository) FindPriceListItem(ctx context.Context, id uuid.UUID) (*models.PriceListItem, error) {
	var row models.PriceListItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
