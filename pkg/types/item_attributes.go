package types

import "github.com/shopspring/decimal"

// ItemCharacteristics holds free-form garment attributes (material, color,
// brand, size) captured by the item wizard.
type ItemCharacteristics map[string]string

// AppliedModifier is the persisted binding of a catalog modifier to an item.
type AppliedModifier struct {
	ModifierCode  string          `json:"modifier_code"`
	SelectedValue decimal.Decimal `json:"selected_value"`
}

// AppliedModifiers is stored as a jsonb array on session_items.
type AppliedModifiers []AppliedModifier

// ModifierImpact is the amount one applied modifier contributed when the item
// was priced.
type ModifierImpact struct {
	ModifierCode string          `json:"modifier_code"`
	Type         string          `json:"type"`
	AppliedValue decimal.Decimal `json:"applied_value"`
	Amount       int64           `json:"amount"`
}

// ModifierImpacts is stored as a jsonb array on session_items.
type ModifierImpacts []ModifierImpact

// Clone returns a deep copy safe to hand to callers.
func (c ItemCharacteristics) Clone() ItemCharacteristics {
	if c == nil {
		return ItemCharacteristics{}
	}
	out := make(ItemCharacteristics, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
