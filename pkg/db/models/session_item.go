package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// SessionItem is one garment line owned by an ItemSession.
type SessionItem struct {
	ID                     uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	SessionID              uuid.UUID                 `gorm:"column:session_id;type:uuid;not null;index"`
	Position               int                       `gorm:"column:position;not null"`
	PriceListItemID        uuid.UUID                 `gorm:"column:price_list_item_id;type:uuid;not null"`
	CategoryCode           string                    `gorm:"column:category_code;type:text;not null"`
	Name                   string                    `gorm:"column:name;type:text;not null"`
	Quantity               decimal.Decimal           `gorm:"column:quantity;type:numeric(12,3);not null"`
	UnitPrice              int64                     `gorm:"column:unit_price_cents;not null"`
	Characteristics        types.ItemCharacteristics `gorm:"column:characteristics;type:jsonb;serializer:json"`
	Stains                 pq.StringArray            `gorm:"column:stains;type:text[]"`
	OtherStains            string                    `gorm:"column:other_stains;type:text"`
	Defects                pq.StringArray            `gorm:"column:defects;type:text[]"`
	HasStains              bool                      `gorm:"column:has_stains;not null;default:false"`
	HasNoGuarantee         bool                      `gorm:"column:has_no_guarantee;not null;default:false"`
	NoGuaranteeExplanation string                    `gorm:"column:no_guarantee_explanation;type:text"`
	RiskFlags              pq.StringArray            `gorm:"column:risk_flags;type:text[]"`
	ClientAcknowledgment   bool                      `gorm:"column:client_acknowledgment;not null;default:false"`
	AppliedModifiers       types.AppliedModifiers    `gorm:"column:applied_modifiers;type:jsonb;serializer:json"`
	ModifiersImpact        types.ModifierImpacts     `gorm:"column:modifiers_impact;type:jsonb;serializer:json"`
	ModifiersTotal         int64                     `gorm:"column:modifiers_total_cents;not null;default:0"`
	TotalPrice             int64                     `gorm:"column:total_price_cents;not null"`
	CreatedAt              time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (SessionItem) TableName() string { return "session_items" }

// BeforeCreate assigns the primary key client side.
func (i *SessionItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
