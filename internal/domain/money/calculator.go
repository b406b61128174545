// Package money computes invoice totals. All arithmetic is exact decimal;
// rounding to 2 decimal places happens only when values are rendered.
package money

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
)

var oneHundred = decimal.NewFromInt(100)

// Totals holds the computed monetary summary of an item list
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Compute returns subtotal, tax and total for the given items and tax rate.
// Rows with a blank description are placeholders and do not contribute.
// Negative quantities and prices clamp to zero. Pure and side-effect free;
// safe to call on every change.
func Compute(items []*entity.LineItem, taxRatePercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		if it == nil || isBlank(it.Description) {
			continue
		}
		qty := it.Quantity
		if qty < 0 {
			qty = 0
		}
		price := it.UnitPrice
		if price.IsNegative() {
			price = decimal.Zero
		}
		subtotal = subtotal.Add(decimal.NewFromInt(qty).Mul(price))
	}

	tax := subtotal.Mul(taxRatePercent).Div(oneHundred)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// Rounded returns the totals rounded to 2 decimal places for display
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal: t.Subtotal.Round(2),
		Tax:      t.Tax.Round(2),
		Total:    t.Total.Round(2),
	}
}

// ParseAmount coerces free-form numeric input to a decimal. Malformed input
// (including NaN and infinities) collapses to zero, never an error.
func ParseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
