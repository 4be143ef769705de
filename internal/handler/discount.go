package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/discount"
	"github.com/vasiliy-maslov/storefront/internal/pricing"
)

type ValidateDiscountRequest struct {
	Code string `json:"code" validate:"required"`
}

type ValidateDiscountResponse struct {
	Valid   bool             `json:"valid"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Reason  string           `json:"reason,omitempty"`
	Message string           `json:"message,omitempty"`
}

type DiscountHandler struct {
	validator   discount.Validator
	cartService cart.Service
	validate    *validator.Validate
}

func NewDiscountHandler(v discount.Validator, cartService cart.Service) *DiscountHandler {
	return &DiscountHandler{
		validator:   v,
		cartService: cartService,
		validate:    validator.New(),
	}
}

func (h *DiscountHandler) RegisterRoutes(router chi.Router) {
	router.Post("/discounts/validate", h.handleValidate)
}

// handleValidate checks a code against the caller's current cart subtotal.
// The result is provisional; the storage constraints at order commit time are
// the real enforcement.
func (h *DiscountHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req ValidateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	lines, err := h.cartService.ResolvedLines(r.Context(), owner)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load cart for discount validation")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to load cart")
		return
	}

	priced := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		priced = append(priced, pricing.Line{UnitPrice: line.UnitPrice, Quantity: line.Quantity})
	}
	subtotal := pricing.Subtotal(priced)

	result, err := h.validator.Validate(r.Context(), req.Code, owner.UserID, subtotal)
	if err != nil {
		var vErr *discount.ValidationError
		if errors.As(err, &vErr) {
			respondWithJSON(w, http.StatusOK, ValidateDiscountResponse{
				Valid:   false,
				Reason:  string(vErr.Reason),
				Message: vErr.Message(),
			})
			return
		}
		log.Error().Err(err).Str("code", req.Code).Msg("Failed to validate discount code")
		respondWithError(w, http.StatusInternalServerError, "Failed to validate discount code")
		return
	}

	respondWithJSON(w, http.StatusOK, ValidateDiscountResponse{Valid: true, Amount: &result.Amount})
}
