package cart

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
)

var (
	ErrNoProductRef        = errors.New("cart line references no product")
	ErrAmbiguousProductRef = errors.New("cart line references both product taxonomies")
	ErrAmbiguousRefinement = errors.New("cart line carries both a variant and a combination")
	ErrNonPositiveQuantity = errors.New("cart line quantity must be positive")
	ErrInvalidOwner        = errors.New("cart owner must be a user or a guest session, not both")
	ErrLineNotFound        = errors.New("cart line not found")
)

// Owner identifies whose cart is being mutated: an authenticated user or an
// anonymous guest session. Exactly one side is set.
type Owner struct {
	UserID         *uuid.UUID
	GuestSessionID string
}

func UserOwner(id uuid.UUID) Owner {
	return Owner{UserID: &id}
}

func GuestOwner(sessionID string) Owner {
	return Owner{GuestSessionID: sessionID}
}

func (o Owner) Validate() error {
	hasUser := o.UserID != nil && *o.UserID != uuid.Nil
	hasGuest := o.GuestSessionID != ""
	if hasUser == hasGuest {
		return ErrInvalidOwner
	}
	return nil
}

// PriceSnapshot is the denormalized product price joined onto a cart row,
// with the time it was last refreshed from the catalog.
type PriceSnapshot struct {
	Price       decimal.Decimal
	RefreshedAt time.Time
}

// RawLine is a cart row as stored: two nullable ids per taxonomy, two
// nullable refinement ids, and a loosely typed price. The resolver turns it
// into a Line or rejects it.
type RawLine struct {
	ID              uuid.UUID
	CatalogItemID   *uuid.UUID
	MenuItemID      *uuid.UUID
	VariantID       *uuid.UUID
	CombinationID   *uuid.UUID
	Quantity        int
	RawPrice        any
	Snapshot        *PriceSnapshot
	VariantMetadata json.RawMessage
}

// Line is a resolved cart entry: one product reference, at most one
// refinement, and a unit price chosen by the fallback chain. The price is a
// display snapshot only; the order executor re-prices at commit time.
type Line struct {
	ID                uuid.UUID
	Product           catalog.ProductRef
	Refinement        *catalog.Refinement
	Quantity          int
	UnitPrice         decimal.Decimal
	NeedsRevalidation bool
	VariantMetadata   json.RawMessage
}
