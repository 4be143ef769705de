package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Result is a provisional approval: the amount the code would take off the
// given order total. Enforcement of ceilings happens at commit time through
// storage constraints, so two concurrent Valid results may still race.
type Result struct {
	Code   *Code
	Amount decimal.Decimal
}

type Validator interface {
	Validate(ctx context.Context, code string, userID *uuid.UUID, orderTotal decimal.Decimal) (*Result, error)
}

type validator struct {
	repo Repository
	now  func() time.Time
}

func NewValidator(repo Repository) Validator {
	return &validator{repo: repo, now: time.Now}
}

// Validate runs the ordered checks; the first failure wins and is returned as
// a *ValidationError. Any other error is an infrastructure failure.
func (v *validator) Validate(ctx context.Context, codeStr string, userID *uuid.UUID, orderTotal decimal.Decimal) (*Result, error) {
	code, err := v.repo.GetByCode(ctx, codeStr)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, &ValidationError{Reason: ReasonNotFound}
		}
		log.Error().Err(err).Str("code", codeStr).Msg("service: failed to load discount code")
		return nil, fmt.Errorf("service: failed to load discount code: %w", err)
	}

	if !code.IsActive {
		return nil, &ValidationError{Reason: ReasonNotFound}
	}

	now := v.now()

	if code.ExpiresAt != nil && now.After(*code.ExpiresAt) {
		return nil, &ValidationError{Reason: ReasonExpired}
	}

	if code.StartsAt != nil && now.Before(*code.StartsAt) {
		return nil, &ValidationError{Reason: ReasonNotStarted}
	}

	if code.MinOrderAmount != nil && orderTotal.LessThan(*code.MinOrderAmount) {
		return nil, &ValidationError{Reason: ReasonBelowMinimum}
	}

	if code.UsageLimit != nil && code.UsageCount >= *code.UsageLimit {
		return nil, &ValidationError{Reason: ReasonLimitReached}
	}

	if code.OnePerCustomer {
		// Guests have no user id to key the per-customer ceiling on.
		if userID == nil {
			return nil, &ValidationError{Reason: ReasonRequiresAccount}
		}
		used, err := v.repo.HasUsage(ctx, code.ID, *userID)
		if err != nil {
			log.Error().Err(err).Str("code", codeStr).Msg("service: failed to check prior usage")
			return nil, fmt.Errorf("service: failed to check prior usage: %w", err)
		}
		if used {
			return nil, &ValidationError{Reason: ReasonAlreadyUsed}
		}
	}

	return &Result{Code: code, Amount: computeAmount(code, orderTotal)}, nil
}

func computeAmount(code *Code, orderTotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal

	switch code.Type {
	case TypePercentage:
		amount = orderTotal.Mul(code.Value).Div(decimal.NewFromInt(100))
		if code.MaxDiscountAmount != nil && amount.GreaterThan(*code.MaxDiscountAmount) {
			amount = *code.MaxDiscountAmount
		}
	case TypeFixed:
		amount = code.Value
		if amount.GreaterThan(orderTotal) {
			amount = orderTotal
		}
	}

	return amount.Round(2)
}
