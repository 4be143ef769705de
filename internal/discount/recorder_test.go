package discount_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront/internal/discount"
)

func TestRecorder_Record(t *testing.T) {
	userID, err := uuid.NewV4()
	require.NoError(t, err)
	orderID, err := uuid.NewV4()
	require.NoError(t, err)

	amount := decimal.NewFromInt(10)

	t.Run("success_inserts_usage_then_increments", func(t *testing.T) {
		var inserted *discount.Usage
		var incremented bool

		repo := &mockRepository{
			insertUsageFunc: func(ctx context.Context, usage *discount.Usage) error {
				inserted = usage
				return nil
			},
			incrementUsageFunc: func(ctx context.Context, codeID uuid.UUID) error {
				assert.NotNil(t, inserted, "usage row must be written before the counter bump")
				incremented = true
				return nil
			},
		}

		code := baseCode()
		code.OnePerCustomer = true

		err := discount.NewRecorder(repo).Record(context.Background(), code, &userID, orderID, amount)
		require.NoError(t, err)

		require.NotNil(t, inserted)
		assert.Equal(t, code.ID, inserted.DiscountCodeID)
		assert.Equal(t, &userID, inserted.UserID)
		assert.Equal(t, orderID, inserted.OrderID)
		assert.True(t, inserted.OnePerCustomer)
		assert.True(t, inserted.Amount.Equal(amount))
		assert.True(t, incremented)
	})

	t.Run("unique_violation_surfaces_race_without_increment", func(t *testing.T) {
		repo := &mockRepository{
			insertUsageFunc: func(ctx context.Context, usage *discount.Usage) error {
				return discount.ErrAlreadyUsedRace
			},
			incrementUsageFunc: func(ctx context.Context, codeID uuid.UUID) error {
				t.Fatal("counter must not be bumped when the usage insert lost the race")
				return nil
			},
		}

		err := discount.NewRecorder(repo).Record(context.Background(), baseCode(), &userID, orderID, amount)
		assert.True(t, errors.Is(err, discount.ErrAlreadyUsedRace))
	})

	t.Run("increment_failure_is_tolerated", func(t *testing.T) {
		repo := &mockRepository{
			insertUsageFunc: func(ctx context.Context, usage *discount.Usage) error {
				return nil
			},
			deleteUsageFunc: func(ctx context.Context, usageID uuid.UUID) error {
				t.Fatal("an ordinary increment failure must not delete the usage row")
				return nil
			},
			incrementUsageFunc: func(ctx context.Context, codeID uuid.UUID) error {
				return errors.New("connection reset")
			},
		}

		// The usage row is the durable source of truth; a failed bump is
		// logged, not returned.
		err := discount.NewRecorder(repo).Record(context.Background(), baseCode(), &userID, orderID, amount)
		assert.NoError(t, err)
	})

	t.Run("ceiling_race_takes_usage_row_back", func(t *testing.T) {
		var insertedID uuid.UUID
		var deletedID uuid.UUID

		repo := &mockRepository{
			insertUsageFunc: func(ctx context.Context, usage *discount.Usage) error {
				insertedID = usage.ID
				return nil
			},
			deleteUsageFunc: func(ctx context.Context, usageID uuid.UUID) error {
				deletedID = usageID
				return nil
			},
			incrementUsageFunc: func(ctx context.Context, codeID uuid.UUID) error {
				return discount.ErrLimitExhausted
			},
		}

		// Exhausting the ceiling after the row was written means validation
		// raced past the limit: the row comes back out so rows and counter
		// stay in step.
		err := discount.NewRecorder(repo).Record(context.Background(), baseCode(), &userID, orderID, amount)
		assert.True(t, errors.Is(err, discount.ErrLimitExhausted))
		assert.NotEqual(t, uuid.Nil, insertedID)
		assert.Equal(t, insertedID, deletedID, "the inserted usage row must be the one deleted")
	})

	t.Run("insert_failure_is_an_error", func(t *testing.T) {
		repo := &mockRepository{
			insertUsageFunc: func(ctx context.Context, usage *discount.Usage) error {
				return errors.New("connection reset")
			},
			incrementUsageFunc: func(ctx context.Context, codeID uuid.UUID) error {
				t.Fatal("counter must not be bumped when the usage insert failed")
				return nil
			},
		}

		err := discount.NewRecorder(repo).Record(context.Background(), baseCode(), &userID, orderID, amount)
		require.Error(t, err)
		assert.False(t, errors.Is(err, discount.ErrAlreadyUsedRace))
	})
}
