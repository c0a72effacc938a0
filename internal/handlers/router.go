package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter регистрирует маршруты /api и общие middleware
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		// пользователи и поставщики
		r.Post("/users/new", h.CreateUserHandler)
		r.Get("/users", h.GetUsersHandler)
		r.Get("/users/{userId}", h.GetUserHandler)
		r.Patch("/users/{userId}", h.EditUserHandler)
		r.Put("/users/{userId}/verification", h.UpdateUserVerificationHandler)
		r.Post("/suppliers/new", h.CreateSupplierHandler)
		r.Get("/suppliers", h.GetSuppliersHandler)
		r.Get("/suppliers/{supplierId}", h.GetSupplierHandler)
		r.Patch("/suppliers/{supplierId}", h.EditSupplierHandler)
		r.Put("/suppliers/{supplierId}/verification", h.UpdateSupplierVerificationHandler)
		// запросы котировок
		r.Post("/rfqs/new", h.CreateRFQHandler)
		r.Get("/rfqs", h.GetRFQsHandler)
		r.Get("/rfqs/{rfqId}", h.GetRFQHandler)
		r.Patch("/rfqs/{rfqId}", h.EditRFQHandler)
		r.Put("/rfqs/{rfqId}/status", h.UpdateRFQStatusHandler)
		r.Get("/rfqs/{rfqId}/matches", h.GetMatchesHandler)
		r.Post("/rfqs/{rfqId}/matches", h.ConfirmMatchesHandler)
		r.Get("/rfqs/{rfqId}/quotations", h.GetRFQQuotationsHandler)
		r.Get("/rfqs/{rfqId}/history", h.GetRFQHistoryHandler)
		// котировки
		r.Post("/quotations/new", h.CreateQuotationHandler)
		r.Get("/quotations", h.GetQuotationsHandler)
		r.Get("/quotations/{quotationId}", h.GetQuotationHandler)
		r.Patch("/quotations/{quotationId}", h.EditQuotationHandler)
		r.Put("/quotations/{quotationId}/review", h.ReviewQuotationHandler)
		r.Put("/quotations/{quotationId}/decision", h.SubmitDecisionHandler)
		// заказы и образцы
		r.Get("/orders", h.GetOrdersHandler)
		r.Get("/orders/{orderId}", h.GetOrderHandler)
		r.Put("/orders/{orderId}/status", h.UpdateOrderStatusHandler)
		r.Post("/samples/new", h.CreateSampleHandler)
		r.Get("/samples", h.GetSamplesHandler)
		r.Put("/samples/{sampleId}/status", h.UpdateSampleStatusHandler)
		// администрирование
		r.Get("/admin/stats", h.GetStatsHandler)
		r.Post("/admin/expire", h.ExpireRFQsHandler)
	})
	return r
}
