package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/pricing"
)

type AddCartItemRequest struct {
	CatalogItemID   *uuid.UUID      `json:"catalog_item_id"`
	MenuItemID      *uuid.UUID      `json:"menu_item_id"`
	VariantID       *uuid.UUID      `json:"variant_id"`
	CombinationID   *uuid.UUID      `json:"combination_id"`
	Quantity        int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice       string          `json:"unit_price"`
	VariantMetadata json.RawMessage `json:"variant_metadata"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type CartLineResponse struct {
	ID                uuid.UUID       `json:"id"`
	ProductKind       string          `json:"product_kind"`
	ProductID         uuid.UUID       `json:"product_id"`
	RefinementKind    string          `json:"refinement_kind,omitempty"`
	RefinementID      *uuid.UUID      `json:"refinement_id,omitempty"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	NeedsRevalidation bool            `json:"needs_revalidation"`
	VariantMetadata   json.RawMessage `json:"variant_metadata,omitempty"`
}

type CartResponse struct {
	Lines     []CartLineResponse `json:"lines"`
	ItemCount int                `json:"item_count"`
	Totals    pricing.Totals     `json:"totals"`
}

type CartHandler struct {
	service    cart.Service
	pricingCfg pricing.Config
	validate   *validator.Validate
}

func NewCartHandler(service cart.Service, pricingCfg pricing.Config) *CartHandler {
	return &CartHandler{
		service:    service,
		pricingCfg: pricingCfg,
		validate:   validator.New(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Patch("/cart/items/{id}", h.handleUpdateItem)
	router.Delete("/cart/items/{id}", h.handleRemoveItem)
	router.Delete("/cart", h.handleClearCart)
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	lines, err := h.service.ResolvedLines(r.Context(), owner)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load cart")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to load cart")
		return
	}

	respondWithJSON(w, http.StatusOK, h.cartResponse(lines))
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req AddCartItemRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	raw := cart.RawLine{
		CatalogItemID:   req.CatalogItemID,
		MenuItemID:      req.MenuItemID,
		VariantID:       req.VariantID,
		CombinationID:   req.CombinationID,
		Quantity:        req.Quantity,
		VariantMetadata: req.VariantMetadata,
	}
	if req.UnitPrice != "" {
		raw.RawPrice = req.UnitPrice
	}

	lineID, err := h.service.AddItem(r.Context(), owner, raw)
	if err != nil {
		if errors.Is(err, cart.ErrNoProductRef) ||
			errors.Is(err, cart.ErrAmbiguousProductRef) ||
			errors.Is(err, cart.ErrAmbiguousRefinement) ||
			errors.Is(err, cart.ErrNonPositiveQuantity) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to add cart item")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to add item to cart")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]uuid.UUID{"line_id": lineID})
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	lineID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid line id")
		return
	}

	var req UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	if err := h.service.UpdateQuantity(r.Context(), owner, lineID, req.Quantity); err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			respondWithError(w, http.StatusNotFound, "Cart item not found")
			return
		}
		log.Error().Err(err).Msg("Failed to update cart item")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to update cart item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	lineID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid line id")
		return
	}

	if err := h.service.RemoveItem(r.Context(), owner, lineID); err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			respondWithError(w, http.StatusNotFound, "Cart item not found")
			return
		}
		log.Error().Err(err).Msg("Failed to remove cart item")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to remove cart item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if err := h.service.Clear(r.Context(), owner); err != nil {
		log.Error().Err(err).Msg("Failed to clear cart")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to clear cart")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) cartResponse(lines []cart.Line) CartResponse {
	priced := make([]pricing.Line, 0, len(lines))
	out := make([]CartLineResponse, 0, len(lines))

	for _, line := range lines {
		priced = append(priced, pricing.Line{UnitPrice: line.UnitPrice, Quantity: line.Quantity})

		resp := CartLineResponse{
			ID:                line.ID,
			ProductKind:       string(line.Product.Kind),
			ProductID:         line.Product.ID,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPrice,
			NeedsRevalidation: line.NeedsRevalidation,
			VariantMetadata:   line.VariantMetadata,
		}
		if line.Refinement != nil {
			resp.RefinementKind = string(line.Refinement.Kind)
			resp.RefinementID = &line.Refinement.ID
		}
		out = append(out, resp)
	}

	return CartResponse{
		Lines:     out,
		ItemCount: pricing.ItemCount(priced),
		Totals:    pricing.Compute(priced, decimal.Zero, h.pricingCfg),
	}
}
