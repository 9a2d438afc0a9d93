package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/pricing"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

type repository interface {
	ListActiveModifiers(ctx context.Context) ([]models.Modifier, error)
	ListPriceListItems(ctx context.Context, categoryCode string) ([]models.PriceListItem, error)
	FindPriceListItem(ctx context.Context, id uuid.UUID) (*models.PriceListItem, error)
}

// Service exposes catalog reads to the session store and the HTTP layer.
type Service interface {
	LoadModifiers(ctx context.Context, categoryCode string) ([]ModifierDTO, error)
	ModifierCatalog(ctx context.Context, categoryCode string) (pricing.Catalog, error)
	PriceList(ctx context.Context, categoryCode string) ([]PriceListItemDTO, error)
	GetPriceListItem(ctx context.Context, id uuid.UUID) (*PriceListItemDTO, error)
}

type service struct {
	repo repository
}

// NewService builds a catalog service.
func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// LoadModifiers returns the active modifiers applicable to categoryCode; an
// empty category returns them all.
func (s *service) LoadModifiers(ctx context.Context, categoryCode string) ([]ModifierDTO, error) {
	rows, err := s.repo.ListActiveModifiers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load modifiers")
	}
	out := make([]ModifierDTO, 0, len(rows))
	for _, row := range rows {
		if !toPricing(row).AppliesTo(categoryCode) {
			continue
		}
		out = append(out, FromModifier(row))
	}
	return out, nil
}

// ModifierCatalog returns every active modifier as a pricing catalog.
// Scope is enforced by the pricing engine so out-of-scope codes surface as
// errors rather than as unknown modifiers.
func (s *service) ModifierCatalog(ctx context.Context, categoryCode string) (pricing.Catalog, error) {
	rows, err := s.repo.ListActiveModifiers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load modifiers")
	}
	modifiers := make([]pricing.Modifier, 0, len(rows))
	for _, row := range rows {
		m := toPricing(row)
		if err := m.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "modifier catalog is inconsistent").
				WithDetails(map[string]any{"modifier_code": row.Code, "category_code": categoryCode})
		}
		modifiers = append(modifiers, m)
	}
	return pricing.NewCatalog(modifiers...), nil
}

func (s *service) PriceList(ctx context.Context, categoryCode string) ([]PriceListItemDTO, error) {
	rows, err := s.repo.ListPriceListItems(ctx, categoryCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price list")
	}
	out := make([]PriceListItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromPriceListItem(row))
	}
	return out, nil
}

func (s *service) GetPriceListItem(ctx context.Context, id uuid.UUID) (*PriceListItemDTO, error) {
	row, err := s.repo.FindPriceListItem(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "price list item not found").
				WithDetails(map[string]any{"price_list_item_id": id.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price list item")
	}
	if !row.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price list item is not active").
			WithDetails(map[string]any{"price_list_item_id": id.String()})
	}
	dto := FromPriceListItem(*row)
	return &dto, nil
}

func toPricing(row models.Modifier) pricing.Modifier {
	return pricing.Modifier{
		Code:          row.Code,
		Name:          row.Name,
		Type:          row.Type,
		Value:         row.Value,
		MinValue:      row.MinValue,
		MaxValue:      row.MaxValue,
		IsDiscount:    row.IsDiscount,
		IsPercentage:  row.IsPercentage,
		CategoryScope: []string(row.CategoryScope),
	}
}
