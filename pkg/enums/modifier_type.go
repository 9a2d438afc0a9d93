package enums

import "fmt"

// ModifierType selects how a price modifier turns its value into an amount.
type ModifierType string

const (
	ModifierTypePercentage  ModifierType = "PERCENTAGE"
	ModifierTypeFixedAmount ModifierType = "FIXED_AMOUNT"
	ModifierTypeRange       ModifierType = "RANGE"
)

var validModifierTypes = []ModifierType{
	ModifierTypePercentage,
	ModifierTypeFixedAmount,
	ModifierTypeRange,
}

// String implements fmt.Stringer.
func (m ModifierType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ModifierType.
func (m ModifierType) IsValid() bool {
	for _, candidate := range validModifierTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseModifierType converts raw input into a ModifierType.
func ParseModifierType(value string) (ModifierType, error) {
	for _, candidate := range validModifierTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid modifier type %q", value)
}
