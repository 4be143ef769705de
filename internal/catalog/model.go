package catalog

import (
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// ProductKind distinguishes the two product taxonomies the storefront carries.
type ProductKind string

const (
	KindCatalogItem ProductKind = "catalog_item"
	KindMenuItem    ProductKind = "menu_item"
)

// ProductRef identifies one purchasable product in exactly one taxonomy.
// Using a tagged reference instead of two nullable foreign keys makes the
// "both ids set" state unrepresentable.
type ProductRef struct {
	Kind ProductKind `json:"kind"`
	ID   uuid.UUID   `json:"id"`
}

func CatalogItemRef(id uuid.UUID) ProductRef {
	return ProductRef{Kind: KindCatalogItem, ID: id}
}

func MenuItemRef(id uuid.UUID) ProductRef {
	return ProductRef{Kind: KindMenuItem, ID: id}
}

func (r ProductRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// RefinementKind distinguishes a single-attribute variant from a
// multi-attribute combination.
type RefinementKind string

const (
	KindVariant     RefinementKind = "variant"
	KindCombination RefinementKind = "combination"
)

// Refinement narrows a ProductRef to a concrete variant or combination.
// A line carries at most one refinement.
type Refinement struct {
	Kind RefinementKind `json:"kind"`
	ID   uuid.UUID      `json:"id"`
}

func VariantRef(id uuid.UUID) Refinement {
	return Refinement{Kind: KindVariant, ID: id}
}

func CombinationRef(id uuid.UUID) Refinement {
	return Refinement{Kind: KindCombination, ID: id}
}

func (r Refinement) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// ItemInfo is the availability snapshot the order executor re-checks at
// commit time.
type ItemInfo struct {
	Available bool
	Price     decimal.Decimal
}
