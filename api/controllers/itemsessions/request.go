package itemsessions

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/internal/pricing"
)

// PricePreviewRequest carries the order-level overlays of a preview.
type PricePreviewRequest struct {
	Expedited       bool            `json:"expedited"`
	ExpeditePercent decimal.Decimal `json:"expedite_percent"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

func (p PricePreviewRequest) Options() pricing.Options {
	return pricing.Options{
		Expedited:       p.Expedited,
		ExpeditePercent: p.ExpeditePercent,
		DiscountPercent: p.DiscountPercent,
	}
}
