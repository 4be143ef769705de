package discount

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Recorder finalizes discount bookkeeping after an order has committed. It
// never rolls the order back: losing the usage race costs the discount
// credit, not the order.
type Recorder interface {
	Record(ctx context.Context, code *Code, userID *uuid.UUID, orderID uuid.UUID, amount decimal.Decimal) error
}

type recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) Recorder {
	return &recorder{repo: repo}
}

func (r *recorder) Record(ctx context.Context, code *Code, userID *uuid.UUID, orderID uuid.UUID, amount decimal.Decimal) error {
	usage := &Usage{
		DiscountCodeID: code.ID,
		UserID:         userID,
		OrderID:        orderID,
		OnePerCustomer: code.OnePerCustomer,
		Amount:         amount,
	}

	err := r.repo.InsertUsage(ctx, usage)
	if err != nil {
		if errors.Is(err, ErrAlreadyUsedRace) {
			log.Warn().
				Stringer("discount_code_id", code.ID).
				Stringer("order_id", orderID).
				Msg("service: discount usage lost one-per-customer race, order stands without credit")
			return ErrAlreadyUsedRace
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to record discount usage")
		return fmt.Errorf("service: failed to record discount usage: %w", err)
	}

	// The usage row above is the durable record of consumption. A failed
	// counter bump is logged and tolerated, with one exception: when the
	// bump reports the ceiling was already reached, validation raced past
	// the limit and the row must be taken back so the number of usage rows
	// never exceeds it.
	if err := r.repo.IncrementUsage(ctx, code.ID); err != nil {
		if errors.Is(err, ErrLimitExhausted) {
			if delErr := r.repo.DeleteUsage(ctx, usage.ID); delErr != nil {
				log.Error().Err(delErr).
					Stringer("usage_id", usage.ID).
					Stringer("order_id", orderID).
					Msg("service: failed to delete usage row after ceiling race")
			}
			log.Warn().
				Stringer("discount_code_id", code.ID).
				Stringer("order_id", orderID).
				Msg("service: discount usage lost ceiling race, order stands")
			return ErrLimitExhausted
		}
		log.Warn().Err(err).
			Stringer("discount_code_id", code.ID).
			Stringer("order_id", orderID).
			Msg("service: failed to increment usage counter after recording usage")
	}

	return nil
}
