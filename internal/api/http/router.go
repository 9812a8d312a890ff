package http

import (
	"context"
	"net/http"
	"time"

	"rental-reservation-backend/internal/security"
	"rental-reservation-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// Handler serves the rental API on top of the service layer.
type Handler struct {
	products     service.ProductService
	reservations service.ReservationService
	checkout     service.CheckoutService
	validate     *validator.Validate
	ping         func(ctx context.Context) error
}

func NewHandler(products service.ProductService, reservations service.ReservationService, checkout service.CheckoutService, ping func(ctx context.Context) error) *Handler {
	return &Handler{
		products:     products,
		reservations: reservations,
		checkout:     checkout,
		validate:     validator.New(),
		ping:         ping,
	}
}

const routeHealth = "health"

// NewRouter registers every /api/v1 route. limiter may be nil to disable rate limiting.
func NewRouter(h *Handler, tokens security.TokenManager, limiter *RateLimiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(recoverer, requestLogging)
	if limiter != nil {
		router.Use(limiter.Middleware)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authenticate(tokens, map[string]bool{routeHealth: true}))

	api.HandleFunc("/health", h.Health).Methods(http.MethodGet).Name(routeHealth)

	api.HandleFunc("/checkout", h.Checkout).Methods(http.MethodPost)
	api.HandleFunc("/quotes", h.Quote).Methods(http.MethodPost)
	api.HandleFunc("/quotations", h.CreateQuotation).Methods(http.MethodPost)

	api.HandleFunc("/reservations", h.ListReservations).Methods(http.MethodGet)
	api.HandleFunc("/reservations/{id}", h.GetReservation).Methods(http.MethodGet)
	api.HandleFunc("/reservations/{id}/amount-due", h.AmountDue).Methods(http.MethodGet)
	api.HandleFunc("/reservations/{id}/transitions", h.Transition).Methods(http.MethodPost)
	api.HandleFunc("/reservations/{id}/schedule", h.Reschedule).Methods(http.MethodPut)
	api.HandleFunc("/reservations/{id}/payment", h.SetPaymentStatus).Methods(http.MethodPut)

	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products", h.CreateProduct).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.UpdateProduct).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", h.DeleteProduct).Methods(http.MethodDelete)
	api.HandleFunc("/products/{id}/availability", h.CheckAvailability).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}/stock", h.AdjustStock).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}/limits", h.SetLimits).Methods(http.MethodPut)

	return router
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
