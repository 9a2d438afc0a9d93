package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/api/responses"
	"github.com/angelmondragon/orderflow-backend/api/validators"
	"github.com/angelmondragon/orderflow-backend/internal/catalog"
	"github.com/angelmondragon/orderflow-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

// QuoteLine is one candidate item of a price quote.
type QuoteLine struct {
	PriceListItemID  uuid.UUID                 `json:"price_list_item_id" validate:"required"`
	Quantity         decimal.Decimal           `json:"quantity"`
	AppliedModifiers []pricing.AppliedModifier `json:"applied_modifiers"`
}

// QuoteRequest prices items that are not part of any session, e.g. while the
// wizard form is still being filled.
type QuoteRequest struct {
	Lines           []QuoteLine     `json:"lines" validate:"required,min=1,max=50,dive"`
	Expedited       bool            `json:"expedited"`
	ExpeditePercent decimal.Decimal `json:"expedite_percent" validate:"percent"`
	DiscountPercent decimal.Decimal `json:"discount_percent" validate:"percent"`
}

func PricingQuote(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		var req QuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := quote(r.Context(), svc, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func quote(ctx context.Context, svc catalog.Service, req QuoteRequest) (*pricing.OrderResult, error) {
	lines := make([]pricing.Line, 0, len(req.Lines))
	for _, in := range req.Lines {
		item, err := svc.GetPriceListItem(ctx, in.PriceListItemID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, pricing.Line{
			CategoryCode: item.CategoryCode,
			UnitPrice:    item.UnitPrice,
			Quantity:     in.Quantity,
			Modifiers:    in.AppliedModifiers,
		})
	}

	mods, err := svc.ModifierCatalog(ctx, "")
	if err != nil {
		return nil, err
	}
	out, err := pricing.ComputeOrder(lines, mods, pricing.Options{
		Expedited:       req.Expedited,
		ExpeditePercent: req.ExpeditePercent,
		DiscountPercent: req.DiscountPercent,
	})
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidModifier) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "price quote")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "items cannot be priced").
			WithDetails(map[string][]string{"lines": {err.Error()}})
	}
	return &out, nil
}
