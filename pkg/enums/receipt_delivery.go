package enums

import "fmt"

// ReceiptDelivery is the channel used to hand the receipt to the client.
type ReceiptDelivery string

const (
	ReceiptDeliveryPrint ReceiptDelivery = "print"
	ReceiptDeliveryEmail ReceiptDelivery = "email"
)

var validReceiptDeliverys = []ReceiptDelivery{
	ReceiptDeliveryPrint,
	ReceiptDeliveryEmail,
}

// String implements fmt.Stringer.
func (r ReceiptDelivery) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReceiptDelivery.
func (r ReceiptDelivery) IsValid() bool {
	for _, candidate := range validReceiptDeliverys {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReceiptDelivery converts raw input into a ReceiptDelivery.
func ParseReceiptDelivery(value string) (ReceiptDelivery, error) {
	for _, candidate := range validReceiptDeliverys {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid receipt delivery %q", value)
}
