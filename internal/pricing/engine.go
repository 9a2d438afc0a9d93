// Package pricing turns unit prices, quantities, modifiers and order-level
// overlays into deterministic price breakdowns. All amounts are minor units;
// every intermediate amount is rounded half away from zero.
//
// The order discount is always taken from the items subtotal before urgency
// and before modifiers, so urgency never inflates the discount.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

var (
	ErrUnknownModifier   = errors.New("unknown modifier")
	ErrModifierScope     = errors.New("modifier not applicable to item category")
	ErrInvalidModifier   = errors.New("invalid modifier")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrNegativeUnitPrice = errors.New("unit price cannot be negative")
)

var hundred = decimal.NewFromInt(100)

// Compute prices a single item and applies the order-level overlays to it.
func Compute(unitPrice int64, quantity decimal.Decimal, applied []AppliedModifier, catalog Catalog, opts Options) (Result, error) {
	res, err := ComputeOrder([]Line{{UnitPrice: unitPrice, Quantity: quantity, Modifiers: applied}}, catalog, opts)
	if err != nil {
		return Result{}, err
	}
	return res.Result, nil
}

// ComputeLine prices one item without order-level overlays.
func ComputeLine(line Line, catalog Catalog) (LineResult, error) {
	return computeLine(0, line, catalog)
}

// ComputeOrder prices every line, then applies urgency and discount once over
// the summed items subtotal.
func ComputeOrder(lines []Line, catalog Catalog, opts Options) (OrderResult, error) {
	priced := make([]LineResult, 0, len(lines))
	for i, line := range lines {
		lr, err := computeLine(i, line, catalog)
		if err != nil {
			return OrderResult{}, fmt.Errorf("line %d: %w", i, err)
		}
		priced = append(priced, lr)
	}
	return Summarize(priced, opts), nil
}

// Summarize applies the order-level overlays to lines that were already
// priced, e.g. items persisted with their computed totals.
func Summarize(lines []LineResult, opts Options) OrderResult {
	out := OrderResult{
		Result: Result{ModifiersImpact: []ModifierImpact{}},
		Lines:  make([]LineResult, 0, len(lines)),
	}
	for _, lr := range lines {
		out.Lines = append(out.Lines, lr)
		out.BasePrice += lr.Subtotal
		out.ModifiersTotal += lr.ModifiersTotal
		out.ItemsTotal += lr.Total
		out.ModifiersImpact = append(out.ModifiersImpact, lr.ModifiersImpact...)
	}

	base := decimal.NewFromInt(out.BasePrice)
	if opts.Expedited {
		out.UrgencyAmount = percentOf(base, clampPercent(opts.ExpeditePercent, false))
	}
	out.DiscountAmount = percentOf(base, clampPercent(opts.DiscountPercent, true))

	final := out.BasePrice + out.ModifiersTotal + out.UrgencyAmount - out.DiscountAmount
	if final < 0 {
		final = 0
	}
	out.FinalPrice = final
	return out
}

// LineSubtotal returns unitPrice * quantity rounded to minor units.
func LineSubtotal(unitPrice int64, quantity decimal.Decimal) int64 {
	return toMinor(decimal.NewFromInt(unitPrice).Mul(quantity))
}

func computeLine(index int, line Line, catalog Catalog) (LineResult, error) {
	if line.UnitPrice < 0 {
		return LineResult{}, ErrNegativeUnitPrice
	}
	if !line.Quantity.IsPositive() {
		return LineResult{}, ErrInvalidQuantity
	}

	lr := LineResult{
		Subtotal:        LineSubtotal(line.UnitPrice, line.Quantity),
		ModifiersImpact: make([]ModifierImpact, 0, len(line.Modifiers)),
	}
	subtotal := decimal.NewFromInt(lr.Subtotal)

	var impacts int64
	for _, am := range line.Modifiers {
		mod, ok := catalog[am.ModifierCode]
		if !ok {
			return LineResult{}, fmt.Errorf("%w: %s", ErrUnknownModifier, am.ModifierCode)
		}
		if !mod.AppliesTo(line.CategoryCode) {
			return LineResult{}, fmt.Errorf("%w: %s on %s", ErrModifierScope, mod.Code, line.CategoryCode)
		}
		impact, err := modifierImpact(mod, am.SelectedValue, subtotal)
		if err != nil {
			return LineResult{}, err
		}
		impact.LineIndex = index
		impacts += impact.Amount
		lr.ModifiersImpact = append(lr.ModifiersImpact, impact)
	}

	total := lr.Subtotal + impacts
	if total < 0 {
		total = 0
	}
	lr.Total = total
	lr.ModifiersTotal = total - lr.Subtotal
	return lr, nil
}

func modifierImpact(mod Modifier, selected, subtotal decimal.Decimal) (ModifierImpact, error) {
	impact := ModifierImpact{ModifierCode: mod.Code, Type: mod.Type}

	var amount decimal.Decimal
	switch mod.Type {
	case enums.ModifierTypePercentage:
		impact.AppliedValue = mod.Value
		amount = subtotal.Mul(mod.Value).Div(hundred)
	case enums.ModifierTypeFixedAmount:
		count := FixedCount(selected)
		impact.AppliedValue = count
		amount = mod.Value.Mul(count)
	case enums.ModifierTypeRange:
		value := ClampRange(mod, selected)
		impact.AppliedValue = value
		if mod.IsPercentage {
			amount = subtotal.Mul(value).Div(hundred)
		} else {
			amount = value
		}
	default:
		return ModifierImpact{}, fmt.Errorf("%w: %s has unknown type %q", ErrInvalidModifier, mod.Code, mod.Type)
	}

	impact.Amount = toMinor(amount)
	if mod.IsDiscount {
		impact.Amount = -impact.Amount
	}
	return impact, nil
}

// FixedCount interprets a FIXED_AMOUNT selection as a whole count of at least one.
func FixedCount(selected decimal.Decimal) decimal.Decimal {
	count := selected.Round(0)
	if count.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return count
}

// ClampRange bounds a RANGE selection to the modifier's [min, max].
func ClampRange(mod Modifier, selected decimal.Decimal) decimal.Decimal {
	value := selected
	if mod.MinValue != nil && value.LessThan(*mod.MinValue) {
		value = *mod.MinValue
	}
	if mod.MaxValue != nil && value.GreaterThan(*mod.MaxValue) {
		value = *mod.MaxValue
	}
	return value
}

func percentOf(base, percent decimal.Decimal) int64 {
	if percent.IsZero() {
		return 0
	}
	return toMinor(base.Mul(percent).Div(hundred))
}

func clampPercent(p decimal.Decimal, capAtHundred bool) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if capAtHundred && p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

func toMinor(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
