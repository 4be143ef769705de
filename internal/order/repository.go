package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
)

type Repository interface {
	Create(ctx context.Context, ord *Order) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// Create commits the order header and all its items in one transaction.
// Inside that transaction every referenced item is re-read for availability
// and current price; the client-supplied prices are only a display hint. The
// buyer's cart rows are cleared in the same transaction. Any failure aborts
// the whole thing with no partial writes.
func (r *postgresRepository) Create(ctx context.Context, ord *Order) (orderID uuid.UUID, err error) {
	finalOrderID := ord.ID
	if finalOrderID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to generate order id: %w", genErr)
		}
		finalOrderID = genID
	}
	ord.ID = finalOrderID

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return uuid.Nil, fmt.Errorf("repository: %w: failed to begin: %v", ErrTransactionFailure, beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Stringer("order_id_attempted", finalOrderID).Msg("panic recovered during order create, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("failed to rollback after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Stringer("order_id_attempted", finalOrderID).Msg("order transaction failed, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Stringer("order_id", finalOrderID).Msg("failed to commit order transaction")
				err = fmt.Errorf("repository: %w: commit failed: %v", ErrTransactionFailure, commitErr)
			}
		}
	}()

	// 1. Re-validate every line against the source of truth and freeze the
	// server-resolved price. A deleted or unavailable item aborts everything.
	lookup := catalog.NewLookup(tx)
	subtotal := decimal.Zero

	for i := range ord.Items {
		item := &ord.Items[i]

		info, lookupErr := lookup.GetItem(ctx, item.Product)
		if lookupErr != nil {
			if errors.Is(lookupErr, catalog.ErrItemNotFound) {
				err = &AvailabilityError{Ref: item.Product}
				return uuid.Nil, err
			}
			err = fmt.Errorf("repository: %w: item lookup failed: %v", ErrTransactionFailure, lookupErr)
			return uuid.Nil, err
		}
		if !info.Available {
			err = &AvailabilityError{Ref: item.Product}
			return uuid.Nil, err
		}

		if item.Refinement != nil {
			exists, refErr := lookup.RefinementExists(ctx, *item.Refinement)
			if refErr != nil {
				err = fmt.Errorf("repository: %w: refinement lookup failed: %v", ErrTransactionFailure, refErr)
				return uuid.Nil, err
			}
			if !exists {
				err = &AvailabilityError{Ref: item.Product, Refinement: item.Refinement}
				return uuid.Nil, err
			}
		}

		item.PriceAtPurchase = info.Price
		subtotal = subtotal.Add(info.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	// 2. Authoritative totals from the re-read prices.
	ord.Subtotal = subtotal.Round(2)
	normalizedDiscount := ord.DiscountAmount
	if normalizedDiscount.IsNegative() {
		normalizedDiscount = decimal.Zero
	}
	ord.DiscountAmount = normalizedDiscount
	ord.OrderTotal = ord.Subtotal.Sub(normalizedDiscount).Round(2)
	if ord.OrderTotal.IsNegative() {
		ord.OrderTotal = decimal.Zero
	}

	// 3. Order header.
	now := time.Now().UTC()
	ord.CreatedAt = now
	ord.UpdatedAt = now

	headerQuery := `
		INSERT INTO orders (id, user_id, guest_session_id, customer_email, customer_name,
		                    shipping_address, subtotal, discount_code_id, discount_amount,
		                    order_total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = tx.Exec(ctx, headerQuery,
		finalOrderID,
		ord.UserID,
		nullableGuest(ord.GuestSessionID),
		ord.CustomerEmail,
		ord.CustomerName,
		ord.ShippingAddr,
		ord.Subtotal,
		ord.DiscountCodeID,
		ord.DiscountAmount,
		ord.OrderTotal,
		string(ord.Status),
		ord.CreatedAt,
		ord.UpdatedAt,
	)
	if err != nil {
		err = fmt.Errorf("repository: %w: failed to insert order: %v", ErrTransactionFailure, err)
		return uuid.Nil, err
	}

	// 4. Line items with their frozen price and metadata.
	itemQuery := `
		INSERT INTO order_items (id, order_id, catalog_item_id, menu_item_id, variant_id,
		                         combination_id, quantity, price_at_purchase, variant_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for i := range ord.Items {
		item := &ord.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order item id: %w", genErr)
			return uuid.Nil, err
		}
		item.ID = itemID
		item.OrderID = finalOrderID
		item.CreatedAt = now

		catalogID, menuID := productColumns(item.Product)
		variantID, combinationID := refinementColumns(item.Refinement)

		_, err = tx.Exec(ctx, itemQuery,
			item.ID,
			finalOrderID,
			catalogID,
			menuID,
			variantID,
			combinationID,
			item.Quantity,
			item.PriceAtPurchase,
			item.VariantMetadata,
			item.CreatedAt,
		)
		if err != nil {
			err = fmt.Errorf("repository: %w: failed to insert order item for order %s: %v", ErrTransactionFailure, finalOrderID, err)
			return uuid.Nil, err
		}
	}

	// 5. The cart ceases to exist once its order commits.
	clearQuery := `
		DELETE FROM cart_items
		WHERE user_id IS NOT DISTINCT FROM $1
		  AND guest_session_id IS NOT DISTINCT FROM $2
	`
	_, err = tx.Exec(ctx, clearQuery, ord.UserID, nullableGuest(ord.GuestSessionID))
	if err != nil {
		err = fmt.Errorf("repository: %w: failed to clear cart for order %s: %v", ErrTransactionFailure, finalOrderID, err)
		return uuid.Nil, err
	}

	return finalOrderID, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	headerQuery := `
		SELECT id, user_id, guest_session_id, customer_email, customer_name, shipping_address,
		       subtotal, discount_code_id, discount_amount, order_total, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var (
		ord   Order
		guest *string
	)
	err := r.db.QueryRow(ctx, headerQuery, orderID).Scan(
		&ord.ID,
		&ord.UserID,
		&guest,
		&ord.CustomerEmail,
		&ord.CustomerName,
		&ord.ShippingAddr,
		&ord.Subtotal,
		&ord.DiscountCodeID,
		&ord.DiscountAmount,
		&ord.OrderTotal,
		&ord.Status,
		&ord.CreatedAt,
		&ord.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}
	if guest != nil {
		ord.GuestSessionID = *guest
	}

	itemsQuery := `
		SELECT id, order_id, catalog_item_id, menu_item_id, variant_id, combination_id,
		       quantity, price_at_purchase, variant_metadata, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		item, scanErr := scanOrderItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %s: %w", orderID, scanErr)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %s: %w", orderID, err)
	}

	ord.Items = items
	return &ord, nil
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	headersQuery := `
		SELECT id, user_id, guest_session_id, customer_email, customer_name, shipping_address,
		       subtotal, discount_code_id, discount_amount, order_total, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	headerRows, err := r.db.Query(ctx, headersQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user %s: %w", userID, err)
	}
	defer headerRows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for headerRows.Next() {
		var (
			ord   Order
			guest *string
		)
		err := headerRows.Scan(
			&ord.ID,
			&ord.UserID,
			&guest,
			&ord.CustomerEmail,
			&ord.CustomerName,
			&ord.ShippingAddr,
			&ord.Subtotal,
			&ord.DiscountCodeID,
			&ord.DiscountAmount,
			&ord.OrderTotal,
			&ord.Status,
			&ord.CreatedAt,
			&ord.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for user %s: %w", userID, err)
		}
		if guest != nil {
			ord.GuestSessionID = *guest
		}
		ord.Items = make([]OrderItem, 0)
		ordersMap[ord.ID] = &ord
		orderIDs = append(orderIDs, ord.ID)
	}
	if err = headerRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders for user %s: %w", userID, err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemsQuery := `
		SELECT id, order_id, catalog_item_id, menu_item_id, variant_id, combination_id,
		       quantity, price_at_purchase, variant_metadata, created_at
		FROM order_items
		WHERE order_id = ANY($1)
	`
	itemRows, err := r.db.Query(ctx, itemsQuery, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for user %s: %w", userID, err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item, scanErr := scanOrderItem(itemRows)
		if scanErr != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for user %s: %w", userID, scanErr)
		}
		if ord, ok := ordersMap[item.OrderID]; ok {
			ord.Items = append(ord.Items, item)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for user %s: %w", userID, err)
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		if ord, ok := ordersMap[id]; ok {
			result = append(result, *ord)
		}
	}

	return result, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := r.db.Exec(ctx, query, string(newStatus), time.Now().UTC(), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Str("new_status", string(newStatus)).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Stringer("order_id", orderID).Str("new_status", string(newStatus)).Msg("repository: order not found for status update")
		return ErrOrderNotFound
	}

	return nil
}

func scanOrderItem(rows pgx.Rows) (OrderItem, error) {
	var (
		item          OrderItem
		catalogID     *uuid.UUID
		menuID        *uuid.UUID
		variantID     *uuid.UUID
		combinationID *uuid.UUID
	)
	err := rows.Scan(
		&item.ID,
		&item.OrderID,
		&catalogID,
		&menuID,
		&variantID,
		&combinationID,
		&item.Quantity,
		&item.PriceAtPurchase,
		&item.VariantMetadata,
		&item.CreatedAt,
	)
	if err != nil {
		return OrderItem{}, err
	}

	switch {
	case catalogID != nil:
		item.Product = catalog.CatalogItemRef(*catalogID)
	case menuID != nil:
		item.Product = catalog.MenuItemRef(*menuID)
	}
	switch {
	case variantID != nil:
		ref := catalog.VariantRef(*variantID)
		item.Refinement = &ref
	case combinationID != nil:
		ref := catalog.CombinationRef(*combinationID)
		item.Refinement = &ref
	}

	return item, nil
}

func productColumns(ref catalog.ProductRef) (catalogID, menuID *uuid.UUID) {
	switch ref.Kind {
	case catalog.KindCatalogItem:
		return &ref.ID, nil
	case catalog.KindMenuItem:
		return nil, &ref.ID
	}
	return nil, nil
}

func refinementColumns(ref *catalog.Refinement) (variantID, combinationID *uuid.UUID) {
	if ref == nil {
		return nil, nil
	}
	switch ref.Kind {
	case catalog.KindVariant:
		return &ref.ID, nil
	case catalog.KindCombination:
		return nil, &ref.ID
	}
	return nil, nil
}

func nullableGuest(sessionID string) *string {
	if sessionID == "" {
		return nil
	}
	return &sessionID
}
