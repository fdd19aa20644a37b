package invoice

import (
	"errors"

	"github.com/shopspring/decimal"
)

// LineItem is a single invoice line. Derived amounts are recomputed from the
// base fields at construction; they are never stored independently as a
// source of truth.
type LineItem struct {
	ID          string          `json:"id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	// DiscountRate and MarginRate are percentages applied to the unit price,
	// discount first, margin on the discounted price.
	DiscountRate decimal.Decimal `json:"discount_rate"`
	MarginRate   decimal.Decimal `json:"margin_rate"`
	VATRate      decimal.Decimal `json:"vat_rate"`

	// Derived, full precision
	NetUnitPrice decimal.Decimal `json:"net_unit_price"`
	VATAmount    decimal.Decimal `json:"vat_amount"`
	LineTotal    decimal.Decimal `json:"line_total"`
	TotalWithVAT decimal.Decimal `json:"total_with_vat"`
}

var hundred = decimal.NewFromInt(100)

// NewLineItem builds a line item and derives its amounts:
//
//	net unit price = unit price × (1 − discount%) × (1 + margin%)
//	line total     = quantity × net unit price
//	VAT amount     = line total × vat%
func NewLineItem(description string, quantity, unitPrice, discountRate, marginRate, vatRate decimal.Decimal) (LineItem, error) {
	if description == "" {
		return LineItem{}, errors.New("line item description is required")
	}
	if !quantity.IsPositive() {
		return LineItem{}, errors.New("line item quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return LineItem{}, errors.New("line item unit price must not be negative")
	}
	if discountRate.IsNegative() || discountRate.GreaterThan(hundred) {
		return LineItem{}, errors.New("discount rate must be between 0 and 100")
	}
	if vatRate.IsNegative() {
		return LineItem{}, errors.New("VAT rate must not be negative")
	}

	net := unitPrice.
		Mul(hundred.Sub(discountRate)).Div(hundred).
		Mul(hundred.Add(marginRate)).Div(hundred)
	lineTotal := quantity.Mul(net)
	vatAmount := lineTotal.Mul(vatRate).Div(hundred)

	return LineItem{
		Description:  description,
		Quantity:     quantity,
		UnitPrice:    unitPrice,
		DiscountRate: discountRate,
		MarginRate:   marginRate,
		VATRate:      vatRate,
		NetUnitPrice: net,
		VATAmount:    vatAmount,
		LineTotal:    lineTotal,
		TotalWithVAT: lineTotal.Add(vatAmount),
	}, nil
}
