package enums

import "fmt"

// DiscountType names the order-level discount program applied at intake.
type DiscountType string

const (
	DiscountTypeNone        DiscountType = "NONE"
	DiscountTypeEverCard    DiscountType = "EVERCARD"
	DiscountTypeSocialMedia DiscountType = "SOCIAL_MEDIA"
	DiscountTypeMilitary    DiscountType = "MILITARY"
	DiscountTypeOther       DiscountType = "OTHER"
)

var validDiscountTypes = []DiscountType{
	DiscountTypeNone,
	DiscountTypeEverCard,
	DiscountTypeSocialMedia,
	DiscountTypeMilitary,
	DiscountTypeOther,
}

// String implements fmt.Stringer.
func (d DiscountType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}
