package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/order"
)

// headers the authentication / guest-session collaborators populate upstream.
const (
	headerUserID       = "X-User-ID"
	headerGuestSession = "X-Guest-Session"
)

var errNoOwner = errors.New("request carries neither a user id nor a guest session")

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fmt.Sprintf("failed on the %q rule", fieldErr.Tag())
	}
	return details
}

func respondValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: formatValidationErrors(validationErrors),
		})
		return
	}
	log.Error().Err(err).Msg("Unexpected error type during validation")
	respondWithError(w, http.StatusInternalServerError, "Internal validation error")
}

// ownerFromRequest builds the cart owner from the identity headers. An
// authenticated user wins over a guest session when both are present.
func ownerFromRequest(r *http.Request) (cart.Owner, error) {
	if raw := r.Header.Get(headerUserID); raw != "" {
		userID, err := uuid.FromString(raw)
		if err != nil {
			return cart.Owner{}, fmt.Errorf("invalid %s header: %w", headerUserID, err)
		}
		return cart.UserOwner(userID), nil
	}
	if session := r.Header.Get(headerGuestSession); session != "" {
		return cart.GuestOwner(session), nil
	}
	return cart.Owner{}, errNoOwner
}

func mapErrorToStatusCode(err error) int {
	var (
		missingField *order.MissingFieldError
		invalidLine  *order.InvalidLineItemError
		unavailable  *order.AvailabilityError
		badLine      *cart.LineError
	)

	switch {
	case errors.As(err, &missingField),
		errors.As(err, &invalidLine),
		errors.As(err, &badLine),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidOwner),
		errors.Is(err, cart.ErrNonPositiveQuantity):
		return http.StatusBadRequest
	case errors.As(err, &unavailable):
		return http.StatusConflict
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidStatusTransition), errors.Is(err, order.ErrStatusAlreadySet):
		return http.StatusConflict
	case errors.Is(err, order.ErrTransactionFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
