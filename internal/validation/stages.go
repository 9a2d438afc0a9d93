package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// ClientStage is the customer and branch intake snapshot.
type ClientStage struct {
	ClientID      string    `json:"client_id" validate:"required,max=64"`
	BranchID      string    `json:"branch_id" validate:"required,max=64"`
	ReceiptNumber string    `json:"receipt_number" validate:"required,max=32"`
	IntakeDate    time.Time `json:"intake_date"`
}

var clientStageRules = []Rule[ClientStage]{
	{
		Field:   "intake_date",
		Message: "is required",
		Check:   func(s ClientStage) bool { return !s.IntakeDate.IsZero() },
	},
}

// ValidateClientStage checks the intake stage.
func ValidateClientStage(s ClientStage) Result {
	res := structRules(s)
	res.Merge("", Evaluate(s, clientStageRules))
	return res
}

// OrderParams is the execution, urgency, discount and payment snapshot.
type OrderParams struct {
	IntakeDate      time.Time           `json:"intake_date"`
	ExecutionDate   *time.Time          `json:"execution_date"`
	Expedited       bool                `json:"expedited"`
	ExpeditePercent decimal.Decimal     `json:"expedite_percent"`
	DiscountType    enums.DiscountType  `json:"discount_type"`
	DiscountPercent decimal.Decimal     `json:"discount_percent"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PrepaidAmount   int64               `json:"prepaid_amount"`
	FinalPrice      int64               `json:"final_price"`
}

var orderParamsRules = []Rule[OrderParams]{
	{
		Field:   "execution_date",
		Message: "is required",
		Check:   func(p OrderParams) bool { return p.ExecutionDate != nil && !p.ExecutionDate.IsZero() },
	},
	{
		Field:   "execution_date",
		Message: "cannot be before the intake date",
		Check: func(p OrderParams) bool {
			if p.ExecutionDate == nil || p.IntakeDate.IsZero() {
				return true
			}
			return !calendarDay(*p.ExecutionDate).Before(calendarDay(p.IntakeDate))
		},
	},
	{
		Field:   "expedite_percent",
		Message: "must be greater than 0 and at most 100",
		Check: func(p OrderParams) bool {
			return !p.Expedited || (p.ExpeditePercent.IsPositive() && p.ExpeditePercent.LessThanOrEqual(hundred))
		},
	},
	{
		Field:   "discount_percent",
		Message: "must be between 0 and 100",
		Check: func(p OrderParams) bool {
			return !p.DiscountPercent.IsNegative() && p.DiscountPercent.LessThanOrEqual(hundred)
		},
	},
	{
		Field:   "discount_type",
		Message: "is invalid",
		Check:   func(p OrderParams) bool { return p.DiscountType == "" || p.DiscountType.IsValid() },
	},
	{
		Field:   "discount_percent",
		Message: "is required for other discounts",
		Check: func(p OrderParams) bool {
			return p.DiscountType != enums.DiscountTypeOther || p.DiscountPercent.IsPositive()
		},
	},
	{
		Field:   "payment_method",
		Message: "is required",
		Check:   func(p OrderParams) bool { return p.PaymentMethod.IsValid() },
	},
	{
		Field:   "prepaid_amount",
		Message: "must be between 0 and the final price",
		Check: func(p OrderParams) bool {
			return p.PrepaidAmount >= 0 && p.PrepaidAmount <= p.FinalPrice
		},
	},
}

// ValidateOrderParams checks the order parameters stage.
func ValidateOrderParams(p OrderParams) Result {
	return Evaluate(p, orderParamsRules)
}

// Confirmation is the legal confirmation snapshot.
type Confirmation struct {
	TermsAccepted     bool                  `json:"terms_accepted"`
	SignatureCaptured bool                  `json:"signature_captured"`
	ReceiptDelivery   enums.ReceiptDelivery `json:"receipt_delivery" validate:"required,oneof=print email"`
	Email             string                `json:"email" validate:"omitempty,email"`
}

var confirmationRules = []Rule[Confirmation]{
	{
		Field:   "terms_accepted",
		Message: "terms must be accepted",
		Check:   func(c Confirmation) bool { return c.TermsAccepted },
	},
	{
		Field:   "signature_captured",
		Message: "signature is required",
		Check:   func(c Confirmation) bool { return c.SignatureCaptured },
	},
	{
		Field:   "email",
		Message: "is required for email delivery",
		Check: func(c Confirmation) bool {
			return c.ReceiptDelivery != enums.ReceiptDeliveryEmail || strings.TrimSpace(c.Email) != ""
		},
	},
}

// ValidateConfirmation checks the legal confirmation stage.
func ValidateConfirmation(c Confirmation) Result {
	res := structRules(c)
	res.Merge("", Evaluate(c, confirmationRules))
	return res
}

// ItemSnapshot is the server side view of one session item.
type ItemSnapshot struct {
	ID              string          `json:"id"`
	PriceListItemID string          `json:"price_list_item_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       int64           `json:"unit_price"`
	TotalPrice      int64           `json:"total_price"`
	Defects         ItemDefects     `json:"defects"`
}

var itemRules = []Rule[ItemSnapshot]{
	{
		Field:   "price_list_item_id",
		Message: "is required",
		Check:   func(i ItemSnapshot) bool { return strings.TrimSpace(i.PriceListItemID) != "" },
	},
	{
		Field:   "quantity",
		Message: "must be greater than 0",
		Check:   func(i ItemSnapshot) bool { return i.Quantity.IsPositive() },
	},
	{
		Field:   "unit_price",
		Message: "cannot be negative",
		Check:   func(i ItemSnapshot) bool { return i.UnitPrice >= 0 },
	},
	{
		Field:   "total_price",
		Message: "cannot be negative",
		Check:   func(i ItemSnapshot) bool { return i.TotalPrice >= 0 },
	},
}

// ValidateItems checks the item collection stage: at least one item, and
// every item valid including its derived defects section.
func ValidateItems(items []ItemSnapshot) Result {
	res := Valid()
	if len(items) == 0 {
		res.Add("items", "at least one item is required")
		return res
	}
	for i, item := range items {
		prefix := fmt.Sprintf("items[%d]", i)
		res.Merge(prefix, Evaluate(item, itemRules))
		res.Merge(prefix+".defects", ValidateItemDefects(DeriveItemDefects(item.Defects)))
	}
	return res
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
