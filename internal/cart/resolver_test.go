package cart_test

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
)

func mustUUID(t *testing.T) *uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return &id
}

func TestResolveLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	staleAfter := 15 * time.Minute

	catalogID := mustUUID(t)
	menuID := mustUUID(t)
	variantID := mustUUID(t)
	combinationID := mustUUID(t)

	tests := []struct {
		name      string
		raw       cart.RawLine
		wantErrIs error
		check     func(t *testing.T, line cart.Line)
	}{
		{
			name:      "no_product_reference",
			raw:       cart.RawLine{Quantity: 1},
			wantErrIs: cart.ErrNoProductRef,
		},
		{
			name:      "both_taxonomies",
			raw:       cart.RawLine{CatalogItemID: catalogID, MenuItemID: menuID, Quantity: 1},
			wantErrIs: cart.ErrAmbiguousProductRef,
		},
		{
			name:      "both_refinements",
			raw:       cart.RawLine{CatalogItemID: catalogID, VariantID: variantID, CombinationID: combinationID, Quantity: 1},
			wantErrIs: cart.ErrAmbiguousRefinement,
		},
		{
			name:      "zero_quantity",
			raw:       cart.RawLine{CatalogItemID: catalogID, Quantity: 0},
			wantErrIs: cart.ErrNonPositiveQuantity,
		},
		{
			name:      "negative_quantity",
			raw:       cart.RawLine{CatalogItemID: catalogID, Quantity: -2},
			wantErrIs: cart.ErrNonPositiveQuantity,
		},
		{
			name: "catalog_item_with_variant",
			raw: cart.RawLine{
				CatalogItemID: catalogID,
				VariantID:     variantID,
				Quantity:      2,
				RawPrice:      "9.99",
			},
			check: func(t *testing.T, line cart.Line) {
				assert.Equal(t, catalog.KindCatalogItem, line.Product.Kind)
				assert.Equal(t, *catalogID, line.Product.ID)
				require.NotNil(t, line.Refinement)
				assert.Equal(t, catalog.KindVariant, line.Refinement.Kind)
				assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("9.99")))
				assert.False(t, line.NeedsRevalidation)
			},
		},
		{
			name: "menu_item_with_combination",
			raw: cart.RawLine{
				MenuItemID:    menuID,
				CombinationID: combinationID,
				Quantity:      1,
				RawPrice:      7.5,
			},
			check: func(t *testing.T, line cart.Line) {
				assert.Equal(t, catalog.KindMenuItem, line.Product.Kind)
				require.NotNil(t, line.Refinement)
				assert.Equal(t, catalog.KindCombination, line.Refinement.Kind)
				assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("7.5")))
			},
		},
		{
			name: "fresh_snapshot_wins_over_raw_price",
			raw: cart.RawLine{
				CatalogItemID: catalogID,
				Quantity:      1,
				RawPrice:      "4.00",
				Snapshot: &cart.PriceSnapshot{
					Price:       decimal.RequireFromString("5.25"),
					RefreshedAt: now.Add(-5 * time.Minute),
				},
			},
			check: func(t *testing.T, line cart.Line) {
				assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("5.25")))
				assert.False(t, line.NeedsRevalidation)
			},
		},
		{
			name: "stale_snapshot_falls_back_to_raw_price",
			raw: cart.RawLine{
				CatalogItemID: catalogID,
				Quantity:      1,
				RawPrice:      "4.00",
				Snapshot: &cart.PriceSnapshot{
					Price:       decimal.RequireFromString("5.25"),
					RefreshedAt: now.Add(-time.Hour),
				},
			},
			check: func(t *testing.T, line cart.Line) {
				assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("4.00")))
				assert.False(t, line.NeedsRevalidation)
			},
		},
		{
			name: "no_usable_price_flags_revalidation",
			raw: cart.RawLine{
				CatalogItemID: catalogID,
				Quantity:      1,
				RawPrice:      "not-a-price",
			},
			check: func(t *testing.T, line cart.Line) {
				assert.True(t, line.UnitPrice.IsZero())
				assert.True(t, line.NeedsRevalidation)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := cart.ResolveLine(tt.raw, staleAfter, now)
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs), "got %v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, line)
		})
	}
}

func TestResolveLines_ReportsFailingIndex(t *testing.T) {
	catalogID := mustUUID(t)
	raw := []cart.RawLine{
		{CatalogItemID: catalogID, Quantity: 1, RawPrice: "10"},
		{Quantity: 1},
	}

	_, err := cart.ResolveLines(raw, 15*time.Minute, time.Now())
	require.Error(t, err)

	var lineErr *cart.LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, 1, lineErr.Index)
	assert.True(t, errors.Is(err, cart.ErrNoProductRef))
}

func TestOwnerValidate(t *testing.T) {
	userID, err := uuid.NewV4()
	require.NoError(t, err)

	tests := []struct {
		name    string
		owner   cart.Owner
		wantErr bool
	}{
		{name: "user", owner: cart.UserOwner(userID), wantErr: false},
		{name: "guest", owner: cart.GuestOwner("sess-123"), wantErr: false},
		{name: "neither", owner: cart.Owner{}, wantErr: true},
		{name: "both", owner: cart.Owner{UserID: &userID, GuestSessionID: "sess-123"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.owner.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, cart.ErrInvalidOwner))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
