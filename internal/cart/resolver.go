package cart

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/pricing"
)

// DefaultPriceStaleness is how long a joined price snapshot is trusted before
// the resolver falls back to the raw stored price.
const DefaultPriceStaleness = 15 * time.Minute

// LineError reports which raw line failed resolution and why.
type LineError struct {
	Index int
	Err   error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("cart line %d: %v", e.Index, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ResolveLines normalizes raw cart rows into priced lines. The whole batch is
// rejected on the first invalid row.
func ResolveLines(raw []RawLine, staleAfter time.Duration, now time.Time) ([]Line, error) {
	lines := make([]Line, 0, len(raw))
	for i, r := range raw {
		line, err := ResolveLine(r, staleAfter, now)
		if err != nil {
			return nil, &LineError{Index: i, Err: err}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ResolveLine normalizes a single raw row: exactly one product reference, at
// most one refinement, positive quantity, and a unit price from the fallback
// chain.
func ResolveLine(raw RawLine, staleAfter time.Duration, now time.Time) (Line, error) {
	if raw.Quantity <= 0 {
		return Line{}, ErrNonPositiveQuantity
	}

	product, err := productRef(raw)
	if err != nil {
		return Line{}, err
	}

	refinement, err := refinementRef(raw)
	if err != nil {
		return Line{}, err
	}

	price, needsRevalidation := resolvePrice(raw, staleAfter, now)

	return Line{
		ID:                raw.ID,
		Product:           product,
		Refinement:        refinement,
		Quantity:          raw.Quantity,
		UnitPrice:         price,
		NeedsRevalidation: needsRevalidation,
		VariantMetadata:   raw.VariantMetadata,
	}, nil
}

func productRef(raw RawLine) (catalog.ProductRef, error) {
	switch {
	case raw.CatalogItemID != nil && raw.MenuItemID != nil:
		return catalog.ProductRef{}, ErrAmbiguousProductRef
	case raw.CatalogItemID != nil:
		return catalog.CatalogItemRef(*raw.CatalogItemID), nil
	case raw.MenuItemID != nil:
		return catalog.MenuItemRef(*raw.MenuItemID), nil
	default:
		return catalog.ProductRef{}, ErrNoProductRef
	}
}

func refinementRef(raw RawLine) (*catalog.Refinement, error) {
	switch {
	case raw.VariantID != nil && raw.CombinationID != nil:
		return nil, ErrAmbiguousRefinement
	case raw.VariantID != nil:
		ref := catalog.VariantRef(*raw.VariantID)
		return &ref, nil
	case raw.CombinationID != nil:
		ref := catalog.CombinationRef(*raw.CombinationID)
		return &ref, nil
	default:
		return nil, nil
	}
}

// resolvePrice walks the fallback chain: a joined snapshot that is fresher
// than the staleness window, then the raw price stored on the row, then zero
// with the line flagged for re-validation.
func resolvePrice(raw RawLine, staleAfter time.Duration, now time.Time) (decimal.Decimal, bool) {
	if raw.Snapshot != nil && now.Sub(raw.Snapshot.RefreshedAt) <= staleAfter {
		return raw.Snapshot.Price, false
	}

	if raw.RawPrice != nil {
		price := pricing.ParseAmount(raw.RawPrice)
		if price.IsPositive() {
			return price, false
		}
	}

	return decimal.Zero, true
}
