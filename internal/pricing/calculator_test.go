package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/storefront/internal/pricing"
)

func testConfig() pricing.Config {
	return pricing.Config{
		ShippingThreshold: decimal.NewFromInt(50),
		ShippingFee:       decimal.NewFromInt(5),
		TaxRate:           decimal.RequireFromString("0.088"),
	}
}

func TestCompute(t *testing.T) {
	lines := []pricing.Line{
		{UnitPrice: decimal.NewFromInt(10), Quantity: 2},
		{UnitPrice: decimal.NewFromInt(20), Quantity: 1},
	}

	tests := []struct {
		name          string
		lines         []pricing.Line
		discount      decimal.Decimal
		wantSubtotal  string
		wantShipping  string
		wantTax       string
		wantGrand     string
		wantItemCount int
	}{
		{
			name:          "no_discount",
			lines:         lines,
			discount:      decimal.Zero,
			wantSubtotal:  "40",
			wantShipping:  "5",
			wantTax:       "3.52",
			wantGrand:     "48.52",
			wantItemCount: 3,
		},
		{
			name:          "fixed_ten_discount",
			lines:         lines,
			discount:      decimal.NewFromInt(10),
			wantSubtotal:  "40",
			wantShipping:  "5",
			wantTax:       "3.52",
			wantGrand:     "38.52",
			wantItemCount: 3,
		},
		{
			name: "free_shipping_over_threshold",
			lines: []pricing.Line{
				{UnitPrice: decimal.NewFromInt(60), Quantity: 1},
			},
			discount:      decimal.Zero,
			wantSubtotal:  "60",
			wantShipping:  "0",
			wantTax:       "5.28",
			wantGrand:     "65.28",
			wantItemCount: 1,
		},
		{
			name: "shipping_charged_at_exact_threshold",
			lines: []pricing.Line{
				{UnitPrice: decimal.NewFromInt(50), Quantity: 1},
			},
			discount:      decimal.Zero,
			wantSubtotal:  "50",
			wantShipping:  "5",
			wantTax:       "4.4",
			wantGrand:     "59.4",
			wantItemCount: 1,
		},
		{
			name:          "discount_exceeds_total_clamps_to_zero",
			lines:         lines,
			discount:      decimal.NewFromInt(100),
			wantSubtotal:  "40",
			wantShipping:  "5",
			wantTax:       "3.52",
			wantGrand:     "0",
			wantItemCount: 3,
		},
		{
			name:          "empty_cart",
			lines:         nil,
			discount:      decimal.Zero,
			wantSubtotal:  "0",
			wantShipping:  "5",
			wantTax:       "0",
			wantGrand:     "5",
			wantItemCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := pricing.Compute(tt.lines, tt.discount, testConfig())

			assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString(tt.wantSubtotal)), "subtotal: got %s", totals.Subtotal)
			assert.True(t, totals.Shipping.Equal(decimal.RequireFromString(tt.wantShipping)), "shipping: got %s", totals.Shipping)
			assert.True(t, totals.Tax.Equal(decimal.RequireFromString(tt.wantTax)), "tax: got %s", totals.Tax)
			assert.True(t, totals.GrandTotal.Equal(decimal.RequireFromString(tt.wantGrand)), "grand total: got %s", totals.GrandTotal)
			assert.Equal(t, tt.wantItemCount, pricing.ItemCount(tt.lines))
		})
	}
}

func TestCompute_Idempotent(t *testing.T) {
	lines := []pricing.Line{
		{UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3},
		{UnitPrice: decimal.RequireFromString("0.01"), Quantity: 7},
	}
	discount := decimal.RequireFromString("4.50")

	first := pricing.Compute(lines, discount, testConfig())
	second := pricing.Compute(lines, discount, testConfig())

	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.True(t, first.Shipping.Equal(second.Shipping))
	assert.True(t, first.Tax.Equal(second.Tax))
	assert.True(t, first.GrandTotal.Equal(second.GrandTotal))
}

func TestGrandTotal_NeverNegative(t *testing.T) {
	subtotals := []string{"0", "0.01", "10", "49.99", "1000"}
	discounts := []string{"0", "5", "50", "99999"}

	for _, s := range subtotals {
		for _, d := range discounts {
			subtotal := decimal.RequireFromString(s)
			discount := decimal.RequireFromString(d)
			shipping := pricing.Shipping(subtotal, testConfig())
			tax := pricing.Tax(subtotal, testConfig())

			total := pricing.GrandTotal(subtotal, shipping, tax, discount)
			assert.False(t, total.IsNegative(), "subtotal=%s discount=%s produced negative total %s", s, d, total)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "decimal_string", input: "12.34", want: "12.34"},
		{name: "integer_string", input: "7", want: "7"},
		{name: "float", input: 9.5, want: "9.5"},
		{name: "int", input: 3, want: "3"},
		{name: "decimal_value", input: decimal.NewFromInt(42), want: "42"},
		{name: "garbage_string", input: "free", want: "0"},
		{name: "nil", input: nil, want: "0"},
		{name: "unsupported_type", input: []string{"10"}, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pricing.ParseAmount(tt.input)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}
