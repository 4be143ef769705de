package discount

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

// Code is a promotional rule. UsageCount is only ever mutated through the
// repository's atomic increment; the ceiling is additionally enforced by a
// check constraint in the schema.
type Code struct {
	ID                uuid.UUID
	Code              string
	IsActive          bool
	Type              Type
	Value             decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        *int
	UsageCount        int
	OnePerCustomer    bool
	StartsAt          *time.Time
	ExpiresAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Usage records one consumption of a code. The partial unique index on
// (discount_code_id, user_id) for one-per-customer codes is the durable
// enforcement of the per-customer ceiling.
type Usage struct {
	ID             uuid.UUID
	DiscountCodeID uuid.UUID
	UserID         *uuid.UUID
	OrderID        uuid.UUID
	OnePerCustomer bool
	Amount         decimal.Decimal
	UsedAt         time.Time
}

// Reason is the typed cause of a failed validation, surfaced verbatim to the
// presentation layer.
type Reason string

const (
	ReasonNotFound     Reason = "not_found"
	ReasonExpired      Reason = "expired"
	ReasonNotStarted   Reason = "not_started"
	ReasonBelowMinimum Reason = "below_minimum"
	ReasonLimitReached Reason = "limit_reached"
	ReasonAlreadyUsed  Reason = "already_used"

	// ReasonRequiresAccount rejects one-per-customer codes for guest
	// sessions: without a user id there is nothing to key the per-customer
	// ceiling on, so allowing guests would make such codes infinitely
	// reusable.
	ReasonRequiresAccount Reason = "requires_account"
)

// ValidationError carries the first failed check. Discount failures never
// block checkout; callers drop the discount and proceed.
type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("discount code rejected: %s", e.Reason)
}

// Message is the user-facing copy for each rejection reason.
func (e *ValidationError) Message() string {
	switch e.Reason {
	case ReasonNotFound:
		return "This discount code is not valid."
	case ReasonExpired:
		return "This discount code has expired."
	case ReasonNotStarted:
		return "This discount code is not active yet."
	case ReasonBelowMinimum:
		return "Your order does not meet the minimum amount for this code."
	case ReasonLimitReached:
		return "This discount code has reached its usage limit."
	case ReasonAlreadyUsed:
		return "You have already used this discount code."
	case ReasonRequiresAccount:
		return "Sign in to use this discount code."
	default:
		return "This discount code cannot be applied."
	}
}

var (
	ErrCodeNotFound = errors.New("discount code not found")

	// ErrAlreadyUsedRace means the usage insert lost the unique-constraint
	// race after the order already committed. The order stands; the discount
	// is simply not credited.
	ErrAlreadyUsedRace = errors.New("discount usage lost race: code already consumed for this customer")
)
