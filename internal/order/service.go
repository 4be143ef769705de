package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront/internal/cart"
)

// CreateRequest is everything the executor needs to turn a resolved cart
// snapshot into a committed order.
type CreateRequest struct {
	CustomerEmail  string
	CustomerName   string
	ShippingAddr   *Address
	Lines          []cart.Line
	DiscountCodeID *uuid.UUID
	DiscountAmount decimal.Decimal
	UserID         *uuid.UUID
	GuestSessionID string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Create validates the request, then hands the repository a pending order to
// commit atomically. Validation failures surface before any write; the
// repository re-prices every line inside its transaction, so the prices on
// req.Lines never reach the permanent record.
func (s *service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	email := strings.TrimSpace(req.CustomerEmail)
	if email == "" {
		return nil, &MissingFieldError{Field: "customer_email"}
	}

	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return nil, &MissingFieldError{Field: "customer_name"}
	}

	if req.ShippingAddr == nil {
		return nil, &MissingFieldError{Field: "shipping_address"}
	}

	if req.UserID == nil && strings.TrimSpace(req.GuestSessionID) == "" {
		return nil, &MissingFieldError{Field: "guest_session_id"}
	}

	if len(req.Lines) == 0 {
		log.Warn().Msg("service: attempt to create order with empty cart")
		return nil, ErrEmptyCart
	}

	items := make([]OrderItem, 0, len(req.Lines))
	for i, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, &InvalidLineItemError{Index: i, Reason: "quantity must be positive"}
		}
		if line.Product.ID == uuid.Nil {
			return nil, &InvalidLineItemError{Index: i, Reason: "product reference is empty"}
		}
		if !line.UnitPrice.IsPositive() {
			return nil, &InvalidLineItemError{Index: i, Reason: "price could not be resolved"}
		}

		items = append(items, OrderItem{
			Product:         line.Product,
			Refinement:      line.Refinement,
			Quantity:        line.Quantity,
			VariantMetadata: line.VariantMetadata,
		})
	}

	discount := req.DiscountAmount
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	ord := &Order{
		UserID:         req.UserID,
		GuestSessionID: strings.TrimSpace(req.GuestSessionID),
		CustomerEmail:  email,
		CustomerName:   name,
		ShippingAddr:   *req.ShippingAddr,
		DiscountCodeID: req.DiscountCodeID,
		DiscountAmount: discount,
		Status:         StatusPending,
		Items:          items,
	}

	if _, err := s.repo.Create(ctx, ord); err != nil {
		var availErr *AvailabilityError
		if errors.As(err, &availErr) {
			log.Warn().Str("ref", availErr.Ref.String()).Msg("service: order rejected, item unavailable at commit time")
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().
		Stringer("order_id", ord.ID).
		Str("order_total", ord.OrderTotal.String()).
		Int("items", len(ord.Items)).
		Msg("service: order created")

	return ord, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	ord, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return ord, nil
}

func (s *service) GetByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	current, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to load order for status update")
		return fmt.Errorf("service: failed to load order for status update: %w", err)
	}

	if current.Status == newStatus {
		return ErrStatusAlreadySet
	}

	if !allowedTransitions[current.Status][newStatus] {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("current_status", current.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, current.Status, newStatus)
	}

	if err := s.repo.UpdateStatus(ctx, orderID, newStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to update order status")
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("old_status", current.Status).
		Stringer("new_status", newStatus).
		Msg("service: order status updated")

	return nil
}
