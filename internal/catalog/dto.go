package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// ModifierDTO is the public shape of a modifier.
type ModifierDTO struct {
	Code          string             `json:"code"`
	Name          string             `json:"name"`
	Type          enums.ModifierType `json:"type"`
	Value         decimal.Decimal    `json:"value"`
	MinValue      *decimal.Decimal   `json:"min_value,omitempty"`
	MaxValue      *decimal.Decimal   `json:"max_value,omitempty"`
	IsDiscount    bool               `json:"is_discount"`
	IsPercentage  bool               `json:"is_percentage"`
	CategoryScope []string           `json:"category_scope"`
}

// PriceListItemDTO is the public shape of a price list entry.
type PriceListItemDTO struct {
	ID           uuid.UUID `json:"id"`
	CategoryCode string    `json:"category_code"`
	Name         string    `json:"name"`
	UnitPrice    int64     `json:"unit_price_cents"`
	Unit         string    `json:"unit"`
}

// FromModifier maps a persisted modifier.
func FromModifier(m models.Modifier) ModifierDTO {
	scope := make([]string, len(m.CategoryScope))
	copy(scope, m.CategoryScope)
	return ModifierDTO{
		Code:          m.Code,
		Name:          m.Name,
		Type:          m.Type,
		Value:         m.Value,
		MinValue:      m.MinValue,
		MaxValue:      m.MaxValue,
		IsDiscount:    m.IsDiscount,
		IsPercentage:  m.IsPercentage,
		CategoryScope: scope,
	}
}

// FromPriceListItem maps a persisted price list entry.
func FromPriceListItem(p models.PriceListItem) PriceListItemDTO {
	return PriceListItemDTO{
		ID:           p.ID,
		CategoryCode: p.CategoryCode,
		Name:         p.Name,
		UnitPrice:    p.UnitPrice,
		Unit:         p.Unit,
	}
}
