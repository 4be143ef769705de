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
	"github.com/vasiliy-maslov/storefront/internal/discount"
	"github.com/vasiliy-maslov/storefront/internal/order"
	"github.com/vasiliy-maslov/storefront/internal/pricing"
)

type AddressRequest struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

type CheckoutRequest struct {
	CustomerEmail   string          `json:"customer_email" validate:"required,email"`
	CustomerName    string          `json:"customer_name" validate:"required"`
	ShippingAddress *AddressRequest `json:"shipping_address" validate:"required"`
	DiscountCode    string          `json:"discount_code"`
}

type CheckoutResponse struct {
	OrderID         uuid.UUID      `json:"order_id"`
	Totals          pricing.Totals `json:"totals"`
	DiscountApplied bool           `json:"discount_applied"`
	DiscountNotice  string         `json:"discount_notice,omitempty"`
}

// CheckoutHandler drives the full checkout sequence: resolve the cart, price
// it, optionally validate a discount, commit the order, then record discount
// usage. Discount problems never block the order; availability or transaction
// problems always do, leaving the cart untouched.
type CheckoutHandler struct {
	cartService   cart.Service
	orderService  order.Service
	discountCheck discount.Validator
	recorder      discount.Recorder
	pricingCfg    pricing.Config
	validate      *validator.Validate
}

func NewCheckoutHandler(
	cartService cart.Service,
	orderService order.Service,
	discountCheck discount.Validator,
	recorder discount.Recorder,
	pricingCfg pricing.Config,
) *CheckoutHandler {
	return &CheckoutHandler{
		cartService:   cartService,
		orderService:  orderService,
		discountCheck: discountCheck,
		recorder:      recorder,
		pricingCfg:    pricingCfg,
		validate:      validator.New(),
	}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router) {
	router.Post("/checkout", h.handleCheckout)
}

func (h *CheckoutHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req CheckoutRequest
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

	lines, err := h.cartService.ResolvedLines(r.Context(), owner)
	if err != nil {
		log.Error().Err(err).Msg("Checkout failed to load cart")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to load cart")
		return
	}
	if len(lines) == 0 {
		respondWithError(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	priced := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		priced = append(priced, pricing.Line{UnitPrice: line.UnitPrice, Quantity: line.Quantity})
	}
	subtotal := pricing.Subtotal(priced)

	// Discount validation is a recommendation only; a rejected code drops
	// the discount and checkout proceeds.
	var (
		discountResult *discount.Result
		discountNotice string
	)
	if req.DiscountCode != "" {
		discountResult, err = h.discountCheck.Validate(r.Context(), req.DiscountCode, owner.UserID, subtotal)
		if err != nil {
			var vErr *discount.ValidationError
			if !errors.As(err, &vErr) {
				log.Error().Err(err).Msg("Checkout failed to validate discount code")
				respondWithError(w, http.StatusInternalServerError, "Failed to validate discount code")
				return
			}
			discountResult = nil
			discountNotice = vErr.Message()
		}
	}

	createReq := order.CreateRequest{
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
		ShippingAddr:   addressFromRequest(req.ShippingAddress),
		Lines:          lines,
		UserID:         owner.UserID,
		GuestSessionID: owner.GuestSessionID,
	}
	if discountResult != nil {
		createReq.DiscountCodeID = &discountResult.Code.ID
		createReq.DiscountAmount = discountResult.Amount
	}

	ord, err := h.orderService.Create(r.Context(), createReq)
	if err != nil {
		h.respondCreateError(w, err)
		return
	}

	resp := CheckoutResponse{
		OrderID:        ord.ID,
		DiscountNotice: discountNotice,
	}

	if discountResult != nil {
		// The discount is already netted into the committed order total and
		// the order is immutable from here. A failed usage recording is a
		// bookkeeping problem, never a change to what the customer pays.
		resp.DiscountApplied = true
		if err := h.recorder.Record(r.Context(), discountResult.Code, owner.UserID, ord.ID, discountResult.Amount); err != nil {
			resp.DiscountNotice = "Your discount was applied, but its usage could not be recorded."
		}
	}

	// Totals reflect what was committed: the server-repriced subtotal and
	// the discount stored on the order.
	appliedDiscount := decimal.Zero
	if discountResult != nil {
		appliedDiscount = ord.DiscountAmount
	}
	committed := make([]pricing.Line, 0, len(ord.Items))
	for _, item := range ord.Items {
		committed = append(committed, pricing.Line{UnitPrice: item.PriceAtPurchase, Quantity: item.Quantity})
	}
	resp.Totals = pricing.Compute(committed, appliedDiscount, h.pricingCfg)

	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *CheckoutHandler) respondCreateError(w http.ResponseWriter, err error) {
	var (
		missingField *order.MissingFieldError
		invalidLine  *order.InvalidLineItemError
		unavailable  *order.AvailabilityError
	)

	switch {
	case errors.As(err, &missingField):
		respondWithError(w, http.StatusBadRequest, missingField.Error())
	case errors.As(err, &invalidLine):
		respondWithError(w, http.StatusBadRequest, invalidLine.Error())
	case errors.Is(err, order.ErrEmptyCart):
		respondWithError(w, http.StatusBadRequest, "Cart is empty")
	case errors.As(err, &unavailable):
		// The cart is preserved; the client flags the dead line for removal.
		respondWithError(w, http.StatusConflict, "An item in your cart is no longer available, please review your cart")
	case errors.Is(err, order.ErrTransactionFailure):
		respondWithError(w, http.StatusServiceUnavailable, "Checkout could not be completed, please try again")
	default:
		log.Error().Err(err).Msg("Checkout failed")
		respondWithError(w, http.StatusInternalServerError, "Checkout failed")
	}
}

func addressFromRequest(req *AddressRequest) *order.Address {
	if req == nil {
		return nil
	}
	return &order.Address{
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	}
}
