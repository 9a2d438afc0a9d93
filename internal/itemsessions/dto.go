package itemsessions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/internal/pricing"
	"github.com/angelmondragon/orderflow-backend/internal/validation"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// SessionDTO is the authoritative session record returned by every operation.
type SessionDTO struct {
	ID            uuid.UUID          `json:"id" validate:"required"`
	OrderID       uuid.UUID          `json:"order_id" validate:"required"`
	State         enums.SessionState `json:"state" validate:"required"`
	WizardMode    enums.WizardMode   `json:"wizard_mode" validate:"required"`
	EditingItemID *uuid.UUID         `json:"editing_item_id"`
	Items         []ItemDTO          `json:"items" validate:"dive"`
	TotalAmount   int64              `json:"total_amount_cents"`
	ItemCount     int                `json:"item_count"`
	CanProceed    bool               `json:"can_proceed"`
	Currency      string             `json:"currency"`
	Version       int64              `json:"version" validate:"min=1"`
	CompletedAt   *time.Time         `json:"completed_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ItemDTO is one item of a session.
type ItemDTO struct {
	ID               uuid.UUID                 `json:"id" validate:"required"`
	PriceListItemID  uuid.UUID                 `json:"price_list_item_id" validate:"required"`
	CategoryCode     string                    `json:"category_code"`
	Name             string                    `json:"name"`
	Quantity         decimal.Decimal           `json:"quantity"`
	UnitPrice        int64                     `json:"unit_price_cents"`
	Characteristics  types.ItemCharacteristics `json:"characteristics"`
	Defects          validation.ItemDefects    `json:"defects"`
	AppliedModifiers []pricing.AppliedModifier `json:"applied_modifiers"`
	ModifiersImpact  []pricing.ModifierImpact  `json:"modifiers_impact"`
	ModifiersTotal   int64                     `json:"modifiers_total_cents"`
	TotalPrice       int64                     `json:"total_price_cents"`
}

// ItemInput is the item payload accepted by AddItem and UpdateItem. Derived
// defect fields are recomputed server side.
type ItemInput struct {
	PriceListItemID  uuid.UUID                 `json:"price_list_item_id" validate:"required"`
	Quantity         decimal.Decimal           `json:"quantity"`
	Characteristics  types.ItemCharacteristics `json:"characteristics,omitempty"`
	Defects          validation.ItemDefects    `json:"defects"`
	AppliedModifiers []pricing.AppliedModifier `json:"applied_modifiers,omitempty"`
}

// ReadinessDTO reports whether the item stage may be completed.
type ReadinessDTO struct {
	Ready      bool              `json:"ready"`
	Validation validation.Result `json:"validation"`
	Session    *SessionDTO       `json:"session,omitempty"`
}

// FromModel maps a persisted session and its items.
func FromModel(m *models.ItemSession) *SessionDTO {
	if m == nil {
		return nil
	}
	dto := &SessionDTO{
		ID:          m.ID,
		OrderID:     m.OrderID,
		State:       m.State,
		WizardMode:  m.WizardMode,
		Items:       make([]ItemDTO, 0, len(m.Items)),
		TotalAmount: m.TotalAmount,
		ItemCount:   m.ItemCount,
		CanProceed:  m.CanProceed,
		Currency:    m.Currency,
		Version:     m.Version,
		CompletedAt: m.CompletedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.EditingItemID != nil {
		id := *m.EditingItemID
		dto.EditingItemID = &id
	}
	for _, item := range m.Items {
		dto.Items = append(dto.Items, FromItemModel(item))
	}
	return dto
}

// FromItemModel maps a persisted item.
func FromItemModel(m models.SessionItem) ItemDTO {
	applied := make([]pricing.AppliedModifier, 0, len(m.AppliedModifiers))
	for _, am := range m.AppliedModifiers {
		applied = append(applied, pricing.AppliedModifier{ModifierCode: am.ModifierCode, SelectedValue: am.SelectedValue})
	}
	return ItemDTO{
		ID:               m.ID,
		PriceListItemID:  m.PriceListItemID,
		CategoryCode:     m.CategoryCode,
		Name:             m.Name,
		Quantity:         m.Quantity,
		UnitPrice:        m.UnitPrice,
		Characteristics:  m.Characteristics.Clone(),
		Defects:          defectsFromModel(m),
		AppliedModifiers: applied,
		ModifiersImpact:  fromModifierImpacts(m.ModifiersImpact),
		ModifiersTotal:   m.ModifiersTotal,
		TotalPrice:       m.TotalPrice,
	}
}

// Snapshot converts the item into the validation view.
func (i ItemDTO) Snapshot() validation.ItemSnapshot {
	return validation.ItemSnapshot{
		ID:              i.ID.String(),
		PriceListItemID: i.PriceListItemID.String(),
		Quantity:        i.Quantity,
		UnitPrice:       i.UnitPrice,
		TotalPrice:      i.TotalPrice,
		Defects:         i.Defects,
	}
}

// Line converts the item into a pricing line.
func (i ItemDTO) Line() pricing.Line {
	mods := make([]pricing.AppliedModifier, len(i.AppliedModifiers))
	copy(mods, i.AppliedModifiers)
	return pricing.Line{
		CategoryCode: i.CategoryCode,
		UnitPrice:    i.UnitPrice,
		Quantity:     i.Quantity,
		Modifiers:    mods,
	}
}

// PricedLine returns the breakdown stored with the item, tagged with its
// position in the order.
func (i ItemDTO) PricedLine(index int) pricing.LineResult {
	impacts := make([]pricing.ModifierImpact, 0, len(i.ModifiersImpact))
	for _, impact := range i.ModifiersImpact {
		impact.LineIndex = index
		impacts = append(impacts, impact)
	}
	subtotal := pricing.LineSubtotal(i.UnitPrice, i.Quantity)
	return pricing.LineResult{
		Subtotal:        subtotal,
		ModifiersImpact: impacts,
		ModifiersTotal:  i.TotalPrice - subtotal,
		Total:           i.TotalPrice,
	}
}

func defectsFromModel(m models.SessionItem) validation.ItemDefects {
	return validation.ItemDefects{
		HasStains:              m.HasStains,
		DetectedStains:         append([]string{}, m.Stains...),
		OtherStains:            m.OtherStains,
		Defects:                append([]string{}, m.Defects...),
		HasNoGuarantee:         m.HasNoGuarantee,
		NoGuaranteeExplanation: m.NoGuaranteeExplanation,
		RiskFlags:              append([]string{}, m.RiskFlags...),
		ClientAcknowledgment:   m.ClientAcknowledgment,
	}
}

func applyDefects(m *models.SessionItem, d validation.ItemDefects) {
	m.HasStains = d.HasStains
	m.Stains = append([]string{}, d.DetectedStains...)
	m.OtherStains = d.OtherStains
	m.Defects = append([]string{}, d.Defects...)
	m.HasNoGuarantee = d.HasNoGuarantee
	m.NoGuaranteeExplanation = d.NoGuaranteeExplanation
	m.RiskFlags = append([]string{}, d.RiskFlags...)
	m.ClientAcknowledgment = d.ClientAcknowledgment
}

func toAppliedModifiers(in []pricing.AppliedModifier) types.AppliedModifiers {
	out := make(types.AppliedModifiers, 0, len(in))
	for _, am := range in {
		out = append(out, types.AppliedModifier{ModifierCode: am.ModifierCode, SelectedValue: am.SelectedValue})
	}
	return out
}

func toModifierImpacts(in []pricing.ModifierImpact) types.ModifierImpacts {
	out := make(types.ModifierImpacts, 0, len(in))
	for _, mi := range in {
		out = append(out, types.ModifierImpact{
			ModifierCode: mi.ModifierCode,
			Type:         string(mi.Type),
			AppliedValue: mi.AppliedValue,
			Amount:       mi.Amount,
		})
	}
	return out
}

func fromModifierImpacts(in types.ModifierImpacts) []pricing.ModifierImpact {
	out := make([]pricing.ModifierImpact, 0, len(in))
	for _, mi := range in {
		out = append(out, pricing.ModifierImpact{
			ModifierCode: mi.ModifierCode,
			Type:         enums.ModifierType(mi.Type),
			AppliedValue: mi.AppliedValue,
			Amount:       mi.Amount,
		})
	}
	return out
}
