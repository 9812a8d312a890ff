package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/security"

	"github.com/go-playground/validator/v10"
)

// errBadRequest marks malformed input that never reached a service.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

// statusFor maps an error kind to its HTTP status and a stable kind label.
func statusFor(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, domain.ErrProductInUse):
		return http.StatusConflict, "product_in_use"
	case errors.Is(err, domain.ErrInvalidDateRange):
		return http.StatusUnprocessableEntity, "invalid_date_range"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "invalid_transition"
	case errors.Is(err, domain.ErrInvalidProduct):
		return http.StatusUnprocessableEntity, "invalid_product"
	case errors.Is(err, domain.ErrAmountOverflow):
		return http.StatusUnprocessableEntity, "amount_overflow"
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidDurationUnit),
		errors.Is(err, domain.ErrInvalidPaymentStatus),
		errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, security.ErrInvalidToken),
		errors.Is(err, security.ErrExpiredToken),
		errors.Is(err, security.ErrWrongTokenType):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, domain.ErrPricingConfiguration):
		return http.StatusInternalServerError, "pricing_configuration"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	switch kind {
	case "pricing_configuration":
		msg = "this product is not priced for the requested duration unit; the owner has been notified"
		logger.ErrorContext(r.Context(), "Product pricing misconfigured", "error", err)
	case "internal", "unavailable":
		logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		if kind == "internal" {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
