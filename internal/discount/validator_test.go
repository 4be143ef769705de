package discount_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront/internal/discount"
)

type mockRepository struct {
	getByCodeFunc      func(ctx context.Context, code string) (*discount.Code, error)
	hasUsageFunc       func(ctx context.Context, codeID, userID uuid.UUID) (bool, error)
	insertUsageFunc    func(ctx context.Context, usage *discount.Usage) error
	deleteUsageFunc    func(ctx context.Context, usageID uuid.UUID) error
	incrementUsageFunc func(ctx context.Context, codeID uuid.UUID) error
}

func (m *mockRepository) GetByCode(ctx context.Context, code string) (*discount.Code, error) {
	return m.getByCodeFunc(ctx, code)
}

func (m *mockRepository) HasUsage(ctx context.Context, codeID, userID uuid.UUID) (bool, error) {
	return m.hasUsageFunc(ctx, codeID, userID)
}

func (m *mockRepository) InsertUsage(ctx context.Context, usage *discount.Usage) error {
	return m.insertUsageFunc(ctx, usage)
}

func (m *mockRepository) DeleteUsage(ctx context.Context, usageID uuid.UUID) error {
	return m.deleteUsageFunc(ctx, usageID)
}

func (m *mockRepository) IncrementUsage(ctx context.Context, codeID uuid.UUID) error {
	return m.incrementUsageFunc(ctx, codeID)
}

func ptr[T any](v T) *T { return &v }

func baseCode() *discount.Code {
	id, _ := uuid.FromString("550e8400-e29b-41d4-a716-446655440000")
	return &discount.Code{
		ID:       id,
		Code:     "WELCOME10",
		IsActive: true,
		Type:     discount.TypeFixed,
		Value:    decimal.NewFromInt(10),
	}
}

func TestValidator_Validate(t *testing.T) {
	userID, err := uuid.NewV4()
	require.NoError(t, err)

	orderTotal := decimal.NewFromInt(40)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name       string
		code       func() *discount.Code
		getErr     error
		hasUsage   bool
		userID     *uuid.UUID
		orderTotal decimal.Decimal
		wantReason discount.Reason
		wantAmount string
	}{
		{
			name:       "not_found",
			code:       func() *discount.Code { return nil },
			getErr:     discount.ErrCodeNotFound,
			orderTotal: orderTotal,
			wantReason: discount.ReasonNotFound,
		},
		{
			name: "inactive_reported_as_not_found",
			code: func() *discount.Code {
				c := baseCode()
				c.IsActive = false
				return c
			},
			orderTotal: orderTotal,
			wantReason: discount.ReasonNotFound,
		},
		{
			name: "expired",
			code: func() *discount.Code {
				c := baseCode()
				c.ExpiresAt = &past
				return c
			},
			orderTotal: orderTotal,
			wantReason: discount.ReasonExpired,
		},
		{
			name: "not_started",
			code: func() *discount.Code {
				c := baseCode()
				c.StartsAt = &future
				return c
			},
			orderTotal: orderTotal,
			wantReason: discount.ReasonNotStarted,
		},
		{
			name: "below_minimum",
			code: func() *discount.Code {
				c := baseCode()
				c.MinOrderAmount = ptr(decimal.NewFromInt(50))
				return c
			},
			orderTotal: orderTotal,
			wantReason: discount.ReasonBelowMinimum,
		},
		{
			name: "limit_reached",
			code: func() *discount.Code {
				c := baseCode()
				c.UsageLimit = ptr(0)
				return c
			},
			orderTotal: orderTotal,
			wantReason: discount.ReasonLimitReached,
		},
		{
			name: "already_used_by_customer",
			code: func() *discount.Code {
				c := baseCode()
				c.OnePerCustomer = true
				return c
			},
			hasUsage:   true,
			userID:     &userID,
			orderTotal: orderTotal,
			wantReason: discount.ReasonAlreadyUsed,
		},
		{
			name:       "fixed_discount",
			code:       baseCode,
			orderTotal: orderTotal,
			wantAmount: "10",
		},
		{
			name: "fixed_discount_clamped_to_order_total",
			code: func() *discount.Code {
				c := baseCode()
				c.Value = decimal.NewFromInt(100)
				return c
			},
			orderTotal: orderTotal,
			wantAmount: "40",
		},
		{
			name: "percentage_discount",
			code: func() *discount.Code {
				c := baseCode()
				c.Type = discount.TypePercentage
				c.Value = decimal.NewFromInt(25)
				return c
			},
			orderTotal: orderTotal,
			wantAmount: "10",
		},
		{
			name: "percentage_clamped_to_max",
			code: func() *discount.Code {
				c := baseCode()
				c.Type = discount.TypePercentage
				c.Value = decimal.NewFromInt(50)
				c.MaxDiscountAmount = ptr(decimal.NewFromInt(5))
				return c
			},
			orderTotal: orderTotal,
			wantAmount: "5",
		},
		{
			name: "percentage_rounded_to_cents",
			code: func() *discount.Code {
				c := baseCode()
				c.Type = discount.TypePercentage
				c.Value = decimal.RequireFromString("7.77")
				return c
			},
			orderTotal: decimal.RequireFromString("19.99"),
			wantAmount: "1.55",
		},
		{
			name: "one_per_customer_requires_signed_in_user",
			code: func() *discount.Code {
				c := baseCode()
				c.OnePerCustomer = true
				return c
			},
			userID:     nil,
			orderTotal: orderTotal,
			wantReason: discount.ReasonRequiresAccount,
		},
		{
			name: "one_per_customer_unused_by_customer",
			code: func() *discount.Code {
				c := baseCode()
				c.OnePerCustomer = true
				return c
			},
			hasUsage:   false,
			userID:     &userID,
			orderTotal: orderTotal,
			wantAmount: "10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{
				getByCodeFunc: func(ctx context.Context, code string) (*discount.Code, error) {
					if tt.getErr != nil {
						return nil, tt.getErr
					}
					return tt.code(), nil
				},
				hasUsageFunc: func(ctx context.Context, codeID, userID uuid.UUID) (bool, error) {
					return tt.hasUsage, nil
				},
			}

			v := discount.NewValidator(repo)
			result, err := v.Validate(context.Background(), "WELCOME10", tt.userID, tt.orderTotal)

			if tt.wantReason != "" {
				require.Error(t, err)
				var vErr *discount.ValidationError
				require.True(t, errors.As(err, &vErr), "got %v", err)
				assert.Equal(t, tt.wantReason, vErr.Reason)
				assert.NotEmpty(t, vErr.Message())
				return
			}

			require.NoError(t, err)
			require.NotNil(t, result)
			assert.True(t, result.Amount.Equal(decimal.RequireFromString(tt.wantAmount)), "got %s", result.Amount)
		})
	}
}

func TestValidator_CheckOrderShortCircuits(t *testing.T) {
	// An expired code that is also below minimum must report expiry: the
	// checks run in a fixed order and the first failure wins.
	past := time.Now().Add(-time.Hour)
	code := baseCode()
	code.ExpiresAt = &past
	code.MinOrderAmount = ptr(decimal.NewFromInt(1000))

	repo := &mockRepository{
		getByCodeFunc: func(ctx context.Context, c string) (*discount.Code, error) { return code, nil },
		hasUsageFunc: func(ctx context.Context, codeID, userID uuid.UUID) (bool, error) {
			t.Fatal("usage check must not run once an earlier check failed")
			return false, nil
		},
	}

	_, err := discount.NewValidator(repo).Validate(context.Background(), "WELCOME10", nil, decimal.NewFromInt(5))

	var vErr *discount.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, discount.ReasonExpired, vErr.Reason)
}
