package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrLimitExhausted is returned by IncrementUsage when the conditional update
// matches no row: either the ceiling is already reached or the code is gone.
var ErrLimitExhausted = errors.New("discount code usage limit exhausted")

type Repository interface {
	GetByCode(ctx context.Context, code string) (*Code, error)
	HasUsage(ctx context.Context, codeID uuid.UUID, userID uuid.UUID) (bool, error)
	InsertUsage(ctx context.Context, usage *Usage) error
	DeleteUsage(ctx context.Context, usageID uuid.UUID) error
	IncrementUsage(ctx context.Context, codeID uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// GetByCode looks a code up case-insensitively.
func (r *postgresRepository) GetByCode(ctx context.Context, code string) (*Code, error) {
	query := `
		SELECT id, code, is_active, discount_type, discount_value, min_order_amount,
		       max_discount_amount, usage_limit, usage_count, one_per_customer,
		       starts_at, expires_at, created_at, updated_at
		FROM discount_codes
		WHERE LOWER(code) = LOWER($1)
	`

	var c Code
	err := r.db.QueryRow(ctx, query, code).Scan(
		&c.ID,
		&c.Code,
		&c.IsActive,
		&c.Type,
		&c.Value,
		&c.MinOrderAmount,
		&c.MaxDiscountAmount,
		&c.UsageLimit,
		&c.UsageCount,
		&c.OnePerCustomer,
		&c.StartsAt,
		&c.ExpiresAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("repository: failed to select discount code: %w", err)
	}

	return &c, nil
}

func (r *postgresRepository) HasUsage(ctx context.Context, codeID uuid.UUID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM discount_usages WHERE discount_code_id = $1 AND user_id = $2)`

	var exists bool
	err := r.db.QueryRow(ctx, query, codeID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check discount usage: %w", err)
	}

	return exists, nil
}

// InsertUsage writes the usage row. A unique violation on the
// one-per-customer index means another request already consumed the code for
// this customer; that is surfaced as ErrAlreadyUsedRace.
func (r *postgresRepository) InsertUsage(ctx context.Context, usage *Usage) error {
	if usage.ID == uuid.Nil {
		genID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate usage id: %w", err)
		}
		usage.ID = genID
	}
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO discount_usages (id, discount_code_id, user_id, order_id, one_per_customer, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		usage.ID,
		usage.DiscountCodeID,
		usage.UserID,
		usage.OrderID,
		usage.OnePerCustomer,
		usage.Amount,
		usage.UsedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrAlreadyUsedRace
		}
		return fmt.Errorf("repository: failed to insert discount usage: %w", err)
	}

	return nil
}

// DeleteUsage takes a usage row back. Used when the counter bump discovers
// the ceiling was already reached, keeping usage rows and the counter in step.
func (r *postgresRepository) DeleteUsage(ctx context.Context, usageID uuid.UUID) error {
	query := `DELETE FROM discount_usages WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, usageID); err != nil {
		return fmt.Errorf("repository: failed to delete discount usage %s: %w", usageID, err)
	}

	return nil
}

// IncrementUsage bumps usage_count in one conditional statement so the
// counter is never read-modified-written from application memory. The check
// constraint on the table backstops it.
func (r *postgresRepository) IncrementUsage(ctx context.Context, codeID uuid.UUID) error {
	query := `
		UPDATE discount_codes
		SET usage_count = usage_count + 1, updated_at = $1
		WHERE id = $2
		  AND (usage_limit IS NULL OR usage_count < usage_limit)
	`

	cmdTag, err := r.db.Exec(ctx, query, time.Now().UTC(), codeID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
			log.Warn().Stringer("discount_code_id", codeID).Msg("repository: usage counter hit check constraint")
			return ErrLimitExhausted
		}
		return fmt.Errorf("repository: failed to increment usage count for code %s: %w", codeID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrLimitExhausted
	}

	return nil
}
