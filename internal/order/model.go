package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusPreparing Status = "preparing"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusPaid:      true,
		StatusCancelled: true,
	},
	StatusPaid: {
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusCompleted: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// Address is the structured shipping destination. Field-level completeness is
// validated upstream; the executor only requires the address to be present.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// OrderItem is the permanent receipt of one purchased line. PriceAtPurchase
// and Quantity never change after the order commits, whatever happens to the
// catalog later.
type OrderItem struct {
	ID              uuid.UUID           `json:"id"`
	OrderID         uuid.UUID           `json:"order_id"`
	Product         catalog.ProductRef  `json:"product"`
	Refinement      *catalog.Refinement `json:"refinement,omitempty"`
	Quantity        int                 `json:"quantity"`
	PriceAtPurchase decimal.Decimal     `json:"price_at_purchase"`
	VariantMetadata json.RawMessage     `json:"variant_metadata,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// Order is immutable once created except for status transitions. OrderTotal
// is subtotal net of discount at creation time and is never recomputed from
// the items.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	GuestSessionID string          `json:"guest_session_id,omitempty"`
	CustomerEmail  string          `json:"customer_email"`
	CustomerName   string          `json:"customer_name"`
	ShippingAddr   Address         `json:"shipping_address"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountCodeID *uuid.UUID      `json:"discount_code_id,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	OrderTotal     decimal.Decimal `json:"order_total"`
	Status         Status          `json:"status"`
	Items          []OrderItem     `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrEmptyCart               = errors.New("order must contain at least one line item")
	ErrStatusAlreadySet        = errors.New("status is already set to the desired value")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")

	// ErrTransactionFailure marks a storage-level abort. Nothing was
	// committed, so the whole checkout is safe to retry once.
	ErrTransactionFailure = errors.New("order transaction aborted")
)

// MissingFieldError rejects a request with a blank required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required field %q is missing", e.Field)
}

// InvalidLineItemError rejects one malformed line before any write happens.
type InvalidLineItemError struct {
	Index  int
	Reason string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("line item %d is invalid: %s", e.Index, e.Reason)
}

// AvailabilityError means a referenced product or refinement no longer exists
// or is unavailable at commit time. No rows were written.
type AvailabilityError struct {
	Ref        catalog.ProductRef
	Refinement *catalog.Refinement
}

func (e *AvailabilityError) Error() string {
	if e.Refinement != nil {
		return fmt.Sprintf("product %s refinement %s is not available", e.Ref, e.Refinement)
	}
	return fmt.Sprintf("product %s is not available", e.Ref)
}
