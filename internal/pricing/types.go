package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// Modifier is immutable reference data describing one price adjustment rule.
// Value is a percentage for PERCENTAGE modifiers and an amount in minor units
// for FIXED_AMOUNT modifiers. RANGE modifiers read the bounded selected value
// as a percentage when IsPercentage is set, otherwise as minor units.
type Modifier struct {
	Code          string
	Name          string
	Type          enums.ModifierType
	Value         decimal.Decimal
	MinValue      *decimal.Decimal
	MaxValue      *decimal.Decimal
	IsDiscount    bool
	IsPercentage  bool
	CategoryScope []string
}

// AppliesTo reports whether the modifier may be attached to an item of the
// given category. An empty scope or an empty category matches everything.
func (m Modifier) AppliesTo(category string) bool {
	if len(m.CategoryScope) == 0 || strings.TrimSpace(category) == "" {
		return true
	}
	for _, scope := range m.CategoryScope {
		if strings.EqualFold(scope, category) {
			return true
		}
	}
	return false
}

// Validate checks the modifier is internally consistent.
func (m Modifier) Validate() error {
	if strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidModifier)
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: %s has unknown type %q", ErrInvalidModifier, m.Code, m.Type)
	}
	if m.Value.IsNegative() {
		return fmt.Errorf("%w: %s has negative value", ErrInvalidModifier, m.Code)
	}
	if m.Type == enums.ModifierTypeRange && m.MinValue != nil && m.MaxValue != nil && m.MinValue.GreaterThan(*m.MaxValue) {
		return fmt.Errorf("%w: %s min exceeds max", ErrInvalidModifier, m.Code)
	}
	return nil
}

// Catalog indexes modifiers by code.
type Catalog map[string]Modifier

// NewCatalog builds a catalog from the provided modifiers. Later entries win
// on duplicate codes.
func NewCatalog(modifiers ...Modifier) Catalog {
	catalog := make(Catalog, len(modifiers))
	for _, m := range modifiers {
		catalog[m.Code] = m
	}
	return catalog
}

// AppliedModifier binds a catalog modifier to the value chosen for one item:
// a count for FIXED_AMOUNT, the requested value for RANGE, ignored for
// PERCENTAGE.
type AppliedModifier struct {
	ModifierCode  string          `json:"modifier_code"`
	SelectedValue decimal.Decimal `json:"selected_value"`
}

// Options carries the order-level urgency and discount overlays.
type Options struct {
	Expedited       bool
	ExpeditePercent decimal.Decimal
	DiscountPercent decimal.Decimal
}

// Line is a single priced item.
type Line struct {
	CategoryCode string
	UnitPrice    int64
	Quantity     decimal.Decimal
	Modifiers    []AppliedModifier
}

// ModifierImpact is the signed amount one applied modifier contributed.
type ModifierImpact struct {
	LineIndex    int                `json:"line_index"`
	ModifierCode string             `json:"modifier_code"`
	Type         enums.ModifierType `json:"type"`
	AppliedValue decimal.Decimal    `json:"applied_value"`
	Amount       int64              `json:"amount"`
}

// LineResult is the per-item breakdown.
type LineResult struct {
	Subtotal        int64            `json:"subtotal"`
	ModifiersImpact []ModifierImpact `json:"modifiers_impact"`
	ModifiersTotal  int64            `json:"modifiers_total"`
	Total           int64            `json:"total"`
}

// Result is the price breakdown. ModifiersTotal is the effective modifier
// contribution after each item total was floored at zero.
type Result struct {
	BasePrice       int64            `json:"base_price"`
	ModifiersImpact []ModifierImpact `json:"modifiers_impact"`
	ModifiersTotal  int64            `json:"modifiers_total"`
	ItemsTotal      int64            `json:"items_total"`
	UrgencyAmount   int64            `json:"urgency_amount"`
	DiscountAmount  int64            `json:"discount_amount"`
	FinalPrice      int64            `json:"final_price"`
}

// OrderResult is the order-level breakdown with the per-line detail.
type OrderResult struct {
	Result
	Lines []LineResult `json:"lines"`
}
