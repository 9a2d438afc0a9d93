package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PriceListItem is a priced service offered for a garment category.
type PriceListItem struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CategoryCode string    `gorm:"column:category_code;type:text;not null;index"`
	Name         string    `gorm:"column:name;type:text;not null"`
	UnitPrice    int64     `gorm:"column:unit_price_cents;not null"`
	Unit         string    `gorm:"column:unit;type:text;not null;default:'piece'"`
	Active       bool      `gorm:"column:active;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (PriceListItem) TableName() string { return "price_list_items" }

// BeforeCreate assigns the primary key client side.
func (p *PriceListItem) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
