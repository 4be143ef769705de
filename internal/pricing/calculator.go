package pricing

import (
	"github.com/shopspring/decimal"
)

// Config holds the pricing policy knobs. They come from configuration, never
// from constants inside this package.
type Config struct {
	ShippingThreshold decimal.Decimal
	ShippingFee       decimal.Decimal
	TaxRate           decimal.Decimal
}

// Line is the minimal priced view of a cart line the calculator needs.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals is the result of pricing a cart snapshot.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	Tax        decimal.Decimal `json:"tax"`
	Discount   decimal.Decimal `json:"discount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// ItemCount returns the total number of units across all lines.
func ItemCount(lines []Line) int {
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count
}

// Subtotal sums unit price times quantity over all lines.
func Subtotal(lines []Line) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal
}

// Shipping applies the flat-with-free-threshold policy: free above the
// threshold, flat fee otherwise.
func Shipping(subtotal decimal.Decimal, cfg Config) decimal.Decimal {
	if subtotal.GreaterThan(cfg.ShippingThreshold) {
		return decimal.Zero
	}
	return cfg.ShippingFee
}

// Tax is computed on the subtotal only; shipping is not part of the taxable
// base under the current policy.
func Tax(subtotal decimal.Decimal, cfg Config) decimal.Decimal {
	return subtotal.Mul(cfg.TaxRate).Round(2)
}

// GrandTotal nets the discount against subtotal plus shipping plus tax,
// rounded to two decimal places. Never negative, even when the discount
// exceeds the rest.
func GrandTotal(subtotal, shipping, tax, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(shipping).Add(tax).Sub(discount).Round(2)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Compute derives all totals for a cart snapshot in one pass.
func Compute(lines []Line, discount decimal.Decimal, cfg Config) Totals {
	subtotal := Subtotal(lines)
	shipping := Shipping(subtotal, cfg)
	tax := Tax(subtotal, cfg)

	return Totals{
		Subtotal:   subtotal.Round(2),
		Shipping:   shipping.Round(2),
		Tax:        tax,
		Discount:   discount.Round(2),
		GrandTotal: GrandTotal(subtotal, shipping, tax, discount),
	}
}

// ParseAmount converts a loosely typed monetary value into a decimal.
// Cart rows historically stored prices as strings or numbers depending on the
// client; anything non-numeric resolves to zero.
func ParseAmount(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case string:
		parsed, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return parsed
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	default:
		return decimal.Zero
	}
}
