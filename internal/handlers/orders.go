package handlers

import (
	"net/http"

	"sourcing/db"
	"sourcing/internal/lifecycle"

	"github.com/go-chi/chi/v5"
)

// GetOrdersHandler обрабатывает GET /api/orders запрос с фильтрами и пагинацией
func (h *Handler) GetOrdersHandler(w http.ResponseWriter, r *http.Request) {
	page, err := parsePaginationParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	filter := db.OrderFilter{
		RFQID:       q.Get("rfqId"),
		QuotationID: q.Get("quotationId"),
		BuyerID:     q.Get("buyerId"),
		SupplierID:  q.Get("supplierId"),
		Page:        page,
	}
	if s := q.Get("status"); s != "" {
		if filter.Status, err = lifecycle.ParseOrderStatus(s); err != nil {
			writeError(w, err)
			return
		}
	}

	orders, err := h.Store.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(orders))
}

// GetOrderHandler обрабатывает GET /api/orders/{orderId} запрос
func (h *Handler) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UpdateOrderStatusHandler обрабатывает PUT /api/orders/{orderId}/status запрос
func (h *Handler) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := lifecycle.ParseOrderStatus(q.Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := h.Auth.AdvanceOrder(r.Context(), chi.URLParam(r, "orderId"), status, q.Get("trackingNumber"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
