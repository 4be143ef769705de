package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository interface {
	List(ctx context.Context, owner Owner) ([]RawLine, error)
	Add(ctx context.Context, owner Owner, raw RawLine) (uuid.UUID, error)
	UpdateQuantity(ctx context.Context, owner Owner, lineID uuid.UUID, quantity int) error
	Remove(ctx context.Context, owner Owner, lineID uuid.UUID) error
	Clear(ctx context.Context, owner Owner) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) List(ctx context.Context, owner Owner) ([]RawLine, error) {
	query := `
		SELECT ci.id, ci.catalog_item_id, ci.menu_item_id, ci.variant_id, ci.combination_id,
		       ci.quantity, ci.unit_price, ci.variant_metadata, ci.price_refreshed_at,
		       COALESCE(c.price, m.price)
		FROM cart_items ci
		LEFT JOIN catalog_items c ON c.id = ci.catalog_item_id
		LEFT JOIN menu_items m ON m.id = ci.menu_item_id
		WHERE ci.user_id IS NOT DISTINCT FROM $1
		  AND ci.guest_session_id IS NOT DISTINCT FROM $2
		ORDER BY ci.created_at
	`

	rows, err := r.db.Query(ctx, query, owner.UserID, nullableGuest(owner))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart items: %w", err)
	}
	defer rows.Close()

	lines := make([]RawLine, 0)
	for rows.Next() {
		var (
			line          RawLine
			storedPrice   *decimal.Decimal
			refreshedAt   *time.Time
			snapshotPrice *decimal.Decimal
		)
		err := rows.Scan(
			&line.ID,
			&line.CatalogItemID,
			&line.MenuItemID,
			&line.VariantID,
			&line.CombinationID,
			&line.Quantity,
			&storedPrice,
			&line.VariantMetadata,
			&refreshedAt,
			&snapshotPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item: %w", err)
		}
		if storedPrice != nil {
			line.RawPrice = *storedPrice
		}
		if snapshotPrice != nil && refreshedAt != nil {
			line.Snapshot = &PriceSnapshot{Price: *snapshotPrice, RefreshedAt: *refreshedAt}
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart items: %w", err)
	}

	return lines, nil
}

// Add upserts a line: an existing row for the same product and refinement
// gets its quantity bumped, otherwise a new row is inserted. Both paths run
// inside one transaction.
func (r *postgresRepository) Add(ctx context.Context, owner Owner, raw RawLine) (lineID uuid.UUID, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit cart add: %w", commitErr)
		}
	}()

	findQuery := `
		SELECT id FROM cart_items
		WHERE user_id IS NOT DISTINCT FROM $1
		  AND guest_session_id IS NOT DISTINCT FROM $2
		  AND catalog_item_id IS NOT DISTINCT FROM $3
		  AND menu_item_id IS NOT DISTINCT FROM $4
		  AND variant_id IS NOT DISTINCT FROM $5
		  AND combination_id IS NOT DISTINCT FROM $6
		FOR UPDATE
	`

	var existingID uuid.UUID
	err = tx.QueryRow(ctx, findQuery,
		owner.UserID, nullableGuest(owner),
		raw.CatalogItemID, raw.MenuItemID, raw.VariantID, raw.CombinationID,
	).Scan(&existingID)

	switch {
	case err == nil:
		updateQuery := `UPDATE cart_items SET quantity = quantity + $1, updated_at = $2 WHERE id = $3`
		_, err = tx.Exec(ctx, updateQuery, raw.Quantity, time.Now().UTC(), existingID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to bump cart item quantity: %w", err)
		}
		return existingID, nil

	case errors.Is(err, pgx.ErrNoRows):
		newID, genErr := uuid.NewV4()
		if genErr != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to generate cart item id: %w", genErr)
		}

		now := time.Now().UTC()
		insertQuery := `
			INSERT INTO cart_items (id, user_id, guest_session_id, catalog_item_id, menu_item_id,
			                        variant_id, combination_id, quantity, unit_price, variant_metadata,
			                        price_refreshed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		var snapshotRefreshed *time.Time
		var price any
		if raw.Snapshot != nil {
			price = raw.Snapshot.Price
			snapshotRefreshed = &raw.Snapshot.RefreshedAt
		} else {
			price = raw.RawPrice
		}

		_, err = tx.Exec(ctx, insertQuery,
			newID, owner.UserID, nullableGuest(owner),
			raw.CatalogItemID, raw.MenuItemID, raw.VariantID, raw.CombinationID,
			raw.Quantity, price, raw.VariantMetadata, snapshotRefreshed, now, now,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to insert cart item: %w", err)
		}
		return newID, nil

	default:
		return uuid.Nil, fmt.Errorf("repository: failed to find matching cart item: %w", err)
	}
}

func (r *postgresRepository) UpdateQuantity(ctx context.Context, owner Owner, lineID uuid.UUID, quantity int) error {
	query := `
		UPDATE cart_items SET quantity = $1, updated_at = $2
		WHERE id = $3
		  AND user_id IS NOT DISTINCT FROM $4
		  AND guest_session_id IS NOT DISTINCT FROM $5
	`

	cmdTag, err := r.db.Exec(ctx, query, quantity, time.Now().UTC(), lineID, owner.UserID, nullableGuest(owner))
	if err != nil {
		return fmt.Errorf("repository: failed to update cart item %s: %w", lineID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrLineNotFound
	}

	return nil
}

func (r *postgresRepository) Remove(ctx context.Context, owner Owner, lineID uuid.UUID) error {
	query := `
		DELETE FROM cart_items
		WHERE id = $1
		  AND user_id IS NOT DISTINCT FROM $2
		  AND guest_session_id IS NOT DISTINCT FROM $3
	`

	cmdTag, err := r.db.Exec(ctx, query, lineID, owner.UserID, nullableGuest(owner))
	if err != nil {
		return fmt.Errorf("repository: failed to remove cart item %s: %w", lineID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrLineNotFound
	}

	return nil
}

func (r *postgresRepository) Clear(ctx context.Context, owner Owner) error {
	query := `
		DELETE FROM cart_items
		WHERE user_id IS NOT DISTINCT FROM $1
		  AND guest_session_id IS NOT DISTINCT FROM $2
	`

	_, err := r.db.Exec(ctx, query, owner.UserID, nullableGuest(owner))
	if err != nil {
		return fmt.Errorf("repository: failed to clear cart: %w", err)
	}

	return nil
}

func nullableGuest(owner Owner) *string {
	if owner.GuestSessionID == "" {
		return nil
	}
	return &owner.GuestSessionID
}
