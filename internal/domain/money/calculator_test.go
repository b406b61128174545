package money

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
)

func item(desc string, qty int64, price string) *entity.LineItem {
	return &entity.LineItem{
		Description: desc,
		Quantity:    qty,
		UnitPrice:   decimal.RequireFromString(price),
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name         string
		items        []*entity.LineItem
		taxRate      string
		wantSubtotal string
		wantTax      string
		wantTotal    string
	}{
		{
			name: "blank description rows are excluded",
			items: []*entity.LineItem{
				item("A", 2, "10"),
				item("", 1, "0"),
				item("B", 1, "5"),
			},
			taxRate:      "9",
			wantSubtotal: "25",
			wantTax:      "2.25",
			wantTotal:    "27.25",
		},
		{
			name:         "empty list",
			items:        nil,
			taxRate:      "9",
			wantSubtotal: "0",
			wantTax:      "0",
			wantTotal:    "0",
		},
		{
			name: "negative quantity clamps to zero",
			items: []*entity.LineItem{
				item("A", -3, "10"),
				item("B", 1, "7.50"),
			},
			taxRate:      "0",
			wantSubtotal: "7.5",
			wantTax:      "0",
			wantTotal:    "7.5",
		},
		{
			name: "negative price clamps to zero",
			items: []*entity.LineItem{
				item("A", 2, "-4"),
				item("B", 2, "3"),
			},
			taxRate:      "10",
			wantSubtotal: "6",
			wantTax:      "0.6",
			wantTotal:    "6.6",
		},
		{
			name: "whitespace-only description is blank",
			items: []*entity.LineItem{
				item("   ", 5, "100"),
			},
			taxRate:      "9",
			wantSubtotal: "0",
			wantTax:      "0",
			wantTotal:    "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.items, decimal.RequireFromString(tt.taxRate))

			if !got.Subtotal.Equal(decimal.RequireFromString(tt.wantSubtotal)) {
				t.Errorf("Subtotal = %s, want %s", got.Subtotal, tt.wantSubtotal)
			}
			if !got.Tax.Equal(decimal.RequireFromString(tt.wantTax)) {
				t.Errorf("Tax = %s, want %s", got.Tax, tt.wantTax)
			}
			if !got.Total.Equal(decimal.RequireFromString(tt.wantTotal)) {
				t.Errorf("Total = %s, want %s", got.Total, tt.wantTotal)
			}
		})
	}
}

func TestCompute_NoCompoundRounding(t *testing.T) {
	// Three items at 0.333 each must sum exactly before display rounding.
	items := []*entity.LineItem{
		item("A", 1, "0.333"),
		item("B", 1, "0.333"),
		item("C", 1, "0.333"),
	}

	got := Compute(items, decimal.Zero)
	if !got.Subtotal.Equal(decimal.RequireFromString("0.999")) {
		t.Errorf("Subtotal = %s, want 0.999 (unrounded accumulation)", got.Subtotal)
	}
	if !got.Rounded().Subtotal.Equal(decimal.RequireFromString("1")) {
		t.Errorf("Rounded().Subtotal = %s, want 1.00", got.Rounded().Subtotal)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	items := []*entity.LineItem{item("A", 2, "10")}
	rate := decimal.RequireFromString("9")

	first := Compute(items, rate)
	second := Compute(items, rate)
	if !first.Total.Equal(second.Total) {
		t.Error("Compute must be idempotent")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12.34", "12.34"},
		{" 7 ", "7"},
		{"abc", "0"},
		{"", "0"},
		{"NaN", "0"},
		{"-3.5", "-3.5"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseAmount(tt.in); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
