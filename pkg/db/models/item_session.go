package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// ItemSession is the authoritative item collection session of one order.
type ItemSession struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_item_sessions_order"`
	State         enums.SessionState `gorm:"column:state;type:text;not null"`
	WizardMode    enums.WizardMode   `gorm:"column:wizard_mode;type:text;not null;default:'inactive'"`
	EditingItemID *uuid.UUID         `gorm:"column:editing_item_id;type:uuid"`
	TotalAmount   int64              `gorm:"column:total_amount_cents;not null;default:0"`
	ItemCount     int                `gorm:"column:item_count;not null;default:0"`
	CanProceed    bool               `gorm:"column:can_proceed;not null;default:false"`
	Currency      string             `gorm:"column:currency;type:text;not null"`
	Version       int64              `gorm:"column:version;not null;default:1"`
	CompletedAt   *time.Time         `gorm:"column:completed_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
	Items         []SessionItem      `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName pins the table name.
func (ItemSession) TableName() string { return "item_sessions" }

// BeforeCreate assigns the primary key client side so sqlite and postgres
// behave the same.
func (s *ItemSession) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
