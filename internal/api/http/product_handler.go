package http

import (
	"net/http"

	"rental-reservation-backend/internal/domain"
)

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := &domain.Product{
		OwnerID:       req.OwnerID,
		Name:          req.Name,
		Description:   req.Description,
		Prices:        req.Prices.toDomain(),
		TotalQuantity: req.TotalQuantity,
	}
	if err := h.products.CreateProduct(r.Context(), actorFrom(r.Context()), p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProductView(p))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProductView(p))
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryInt32(r, "owner_id", actorFrom(r.Context()).UserID)
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
	list, total, err := h.products.ListOwnerProducts(r.Context(), ownerID, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]productView, 0, len(list))
	for i := range list {
		views = append(views, newProductView(&list[i]))
	}
	writeJSON(w, http.StatusOK, listResponse[productView]{Items: views, Total: total, Page: page})
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req productRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.UpdateProduct(r.Context(), actorFrom(r.Context()), &domain.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Prices:      req.Prices.toDomain(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProductView(p))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.products.DeleteProduct(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req stockRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	level, err := h.products.AdjustStock(r.Context(), actorFrom(r.Context()), id, req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, level)
}

func (h *Handler) SetLimits(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req limitsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.products.SetLimits(r.Context(), actorFrom(r.Context()), id, req.MinQuantity, req.MaxQuantity); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckAvailability reads start, end and quantity from the query string.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, end, err := parseInterval(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	qty, err := queryInt32(r, "quantity", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.products.CheckAvailability(r.Context(), id, start, end, qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, end, err := parseInterval(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.products.Quote(r.Context(), req.ProductID, start, end, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
