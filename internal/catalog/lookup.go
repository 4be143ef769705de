package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrItemNotFound = errors.New("catalog item not found")

// Querier is the subset of pgx both a pool and an open transaction satisfy.
// The order repository passes its transaction here so availability checks see
// the same snapshot the commit does.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Lookup resolves current availability and price for product references.
type Lookup interface {
	GetItem(ctx context.Context, ref ProductRef) (*ItemInfo, error)
	RefinementExists(ctx context.Context, ref Refinement) (bool, error)
}

type postgresLookup struct {
	db Querier
}

func NewLookup(db Querier) Lookup {
	return &postgresLookup{db: db}
}

func (l *postgresLookup) GetItem(ctx context.Context, ref ProductRef) (*ItemInfo, error) {
	var query string
	switch ref.Kind {
	case KindCatalogItem:
		query = `SELECT is_available, price FROM catalog_items WHERE id = $1`
	case KindMenuItem:
		query = `SELECT is_available, price FROM menu_items WHERE id = $1`
	default:
		return nil, fmt.Errorf("catalog: unknown product kind %q", ref.Kind)
	}

	var info ItemInfo
	err := l.db.QueryRow(ctx, query, ref.ID).Scan(&info.Available, &info.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("catalog: failed to select %s: %w", ref, err)
	}

	return &info, nil
}

func (l *postgresLookup) RefinementExists(ctx context.Context, ref Refinement) (bool, error) {
	var query string
	switch ref.Kind {
	case KindVariant:
		query = `SELECT EXISTS (SELECT 1 FROM variants WHERE id = $1)`
	case KindCombination:
		query = `SELECT EXISTS (SELECT 1 FROM combinations WHERE id = $1)`
	default:
		return false, fmt.Errorf("catalog: unknown refinement kind %q", ref.Kind)
	}

	var exists bool
	err := l.db.QueryRow(ctx, query, ref.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("catalog: failed to check %s: %w", ref, err)
	}

	return exists, nil
}
