package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	AddItem(ctx context.Context, owner Owner, raw RawLine) (uuid.UUID, error)
	UpdateQuantity(ctx context.Context, owner Owner, lineID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, owner Owner, lineID uuid.UUID) error
	Clear(ctx context.Context, owner Owner) error
	ResolvedLines(ctx context.Context, owner Owner) ([]Line, error)
}

type service struct {
	repo          Repository
	priceStaleAge time.Duration
	now           func() time.Time
}

func NewService(repo Repository, priceStaleAge time.Duration) Service {
	if priceStaleAge <= 0 {
		priceStaleAge = DefaultPriceStaleness
	}
	return &service{
		repo:          repo,
		priceStaleAge: priceStaleAge,
		now:           time.Now,
	}
}

func (s *service) AddItem(ctx context.Context, owner Owner, raw RawLine) (uuid.UUID, error) {
	if err := owner.Validate(); err != nil {
		return uuid.Nil, err
	}

	// Resolution doubles as input validation: taxonomy exclusivity,
	// refinement exclusivity and positive quantity are all checked here.
	if _, err := ResolveLine(raw, s.priceStaleAge, s.now()); err != nil {
		return uuid.Nil, err
	}

	lineID, err := s.repo.Add(ctx, owner, raw)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to add cart item")
		return uuid.Nil, fmt.Errorf("service: failed to add cart item: %w", err)
	}

	return lineID, nil
}

func (s *service) UpdateQuantity(ctx context.Context, owner Owner, lineID uuid.UUID, quantity int) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if quantity < 0 {
		return ErrNonPositiveQuantity
	}

	// Zero quantity means removal, matching storefront client behaviour.
	if quantity == 0 {
		return s.RemoveItem(ctx, owner, lineID)
	}

	err := s.repo.UpdateQuantity(ctx, owner, lineID, quantity)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		log.Error().Err(err).Stringer("line_id", lineID).Msg("service: failed to update cart quantity")
		return fmt.Errorf("service: failed to update cart quantity: %w", err)
	}

	return nil
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, lineID uuid.UUID) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	err := s.repo.Remove(ctx, owner, lineID)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		log.Error().Err(err).Stringer("line_id", lineID).Msg("service: failed to remove cart item")
		return fmt.Errorf("service: failed to remove cart item: %w", err)
	}

	return nil
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	if err := s.repo.Clear(ctx, owner); err != nil {
		log.Error().Err(err).Msg("service: failed to clear cart")
		return fmt.Errorf("service: failed to clear cart: %w", err)
	}

	return nil
}

func (s *service) ResolvedLines(ctx context.Context, owner Owner) ([]Line, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	raw, err := s.repo.List(ctx, owner)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list cart items")
		return nil, fmt.Errorf("service: failed to list cart items: %w", err)
	}

	return ResolveLines(raw, s.priceStaleAge, s.now())
}
