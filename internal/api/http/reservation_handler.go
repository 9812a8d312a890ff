package http

import (
	"fmt"
	"net/http"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/logger"
)

// customerFor resolves whose cart this is. Customers always act for themselves.
func customerFor(r *http.Request, id int32, email string) (domain.Customer, error) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		return domain.Customer{}, domain.ErrUnauthorized
	}
	actor := claims.Actor()
	if id != 0 && id != actor.UserID {
		if !actor.IsStaff() {
			return domain.Customer{}, domain.ErrUnauthorized
		}
		return domain.Customer{ID: id, Email: email}, nil
	}
	if actor.Role != domain.RoleCustomer && !actor.IsStaff() {
		return domain.Customer{}, domain.ErrUnauthorized
	}
	return domain.Customer{ID: actor.UserID, Email: claims.Email}, nil
}

// Checkout always answers 200 with one result per submitted line, in order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	customer, err := customerFor(r, req.CustomerID, req.CustomerEmail)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.toLineItem())
	}
	logger.EnterMethod("Handler.Checkout", "customer_id", customer.ID, "lines", len(items))
	result, err := h.checkout.Checkout(r.Context(), customer, items)
	if err != nil {
		logger.ExitMethodWithError("Handler.Checkout", err)
		writeError(w, r, err)
		return
	}
	logger.ExitMethod("Handler.Checkout", "checkout_id", result.CheckoutID, "succeeded", result.Succeeded())
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CreateQuotation(w http.ResponseWriter, r *http.Request) {
	var req quotationRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	customer, err := customerFor(r, req.CustomerID, req.CustomerEmail)
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, end, err := parseInterval(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item := domain.LineItem{
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		StartDate:    start,
		EndDate:      end,
		DurationUnit: domain.DurationUnit(req.DurationUnit),
	}
	res, err := h.reservations.CreateQuotation(r.Context(), actorFrom(r.Context()), customer, item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newReservationView(res, h.reservations.Now()))
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.reservations.GetReservation(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReservationView(res, h.reservations.Now()))
}

func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	customerID, err := queryInt32(r, "customer_id", actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := queryInt32(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pageSize, err := queryInt32(r, "page_size", 20)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, total, err := h.reservations.ListCustomerReservations(r.Context(), actor, customerID, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := h.reservations.Now()
	views := make([]reservationView, 0, len(list))
	for i := range list {
		views = append(views, newReservationView(&list[i], now))
	}
	writeJSON(w, http.StatusOK, listResponse[reservationView]{Items: views, Total: total, Page: page})
}

func (h *Handler) AmountDue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	due, err := h.reservations.AmountDue(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transitionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, ok := domain.ParseReservationStatus(req.TargetState)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: unknown state %q", domain.ErrInvalidTransition, req.TargetState))
		return
	}
	res, err := h.reservations.Transition(r.Context(), actorFrom(r.Context()), id, target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReservationView(res, h.reservations.Now()))
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req scheduleRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, end, err := parseInterval(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.reservations.Reschedule(r.Context(), actorFrom(r.Context()), id, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReservationView(res, h.reservations.Now()))
}

func (h *Handler) SetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req paymentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.reservations.SetPaymentStatus(r.Context(), actorFrom(r.Context()), id, domain.PaymentStatus(req.PaymentStatus))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReservationView(res, h.reservations.Now()))
}
