package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// Modifier is catalog reference data; sessions refer to it by code.
type Modifier struct {
	Code          string             `gorm:"column:code;type:text;primaryKey"`
	Name          string             `gorm:"column:name;type:text;not null"`
	Type          enums.ModifierType `gorm:"column:type;type:text;not null"`
	Value         decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null"`
	MinValue      *decimal.Decimal   `gorm:"column:min_value;type:numeric(12,2)"`
	MaxValue      *decimal.Decimal   `gorm:"column:max_value;type:numeric(12,2)"`
	IsDiscount    bool               `gorm:"column:is_discount;not null;default:false"`
	IsPercentage  bool               `gorm:"column:is_percentage;not null;default:false"`
	CategoryScope pq.StringArray     `gorm:"column:category_scope;type:text[]"`
	Active        bool               `gorm:"column:active;not null"`
	SortOrder     int                `gorm:"column:sort_order;not null;default:0"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (Modifier) TableName() string { return "modifiers" }
