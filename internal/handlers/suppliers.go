package handlers

import (
	"net/http"

	"sourcing/db"
	"sourcing/internal/lifecycle"
	"sourcing/models"

	"github.com/go-chi/chi/v5"
)

// validateSupplier проверяет теги и что все категории известны площадке.
func (h *Handler) validateSupplier(s *models.Supplier) error {
	if err := models.Validate(s); err != nil {
		return err
	}
	for _, c := range s.Categories {
		if !h.Config.KnownCategory(c) {
			return models.Invalid("categories", "unknown category "+c)
		}
	}
	return nil
}

// CreateSupplierHandler заводит профиль для существующего пользователя-поставщика.
func (h *Handler) CreateSupplierHandler(w http.ResponseWriter, r *http.Request) {
	var supplier models.Supplier
	if !decodeJSON(w, r, &supplier) {
		return
	}
	if err := h.validateSupplier(&supplier); err != nil {
		writeError(w, err)
		return
	}
	supplier.VerificationStatus = models.VerificationPending

	err := h.Store.Atomic(r.Context(), func(repo db.Repository) error {
		user, err := repo.GetUser(r.Context(), supplier.ID)
		if err != nil {
			return err
		}
		if user.UserType != models.UserSupplier {
			return models.Invalid("id", "must reference a supplier user")
		}
		return repo.CreateSupplier(r.Context(), &supplier)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

// GetSuppliersHandler обрабатывает GET /api/suppliers запрос с фильтрами и пагинацией
func (h *Handler) GetSuppliersHandler(w http.ResponseWriter, r *http.Request) {
	page, err := parsePaginationParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	filter := db.SupplierFilter{Category: q.Get("category"), Page: page}
	if s := q.Get("verificationStatus"); s != "" {
		if filter.VerificationStatus, err = lifecycle.ParseVerificationStatus(s); err != nil {
			writeError(w, err)
			return
		}
	}

	suppliers, err := h.Store.ListSuppliers(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(suppliers))
}

// GetSupplierHandler обрабатывает GET /api/suppliers/{supplierId} запрос
func (h *Handler) GetSupplierHandler(w http.ResponseWriter, r *http.Request) {
	supplier, err := h.Store.GetSupplier(r.Context(), chi.URLParam(r, "supplierId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

// EditSupplierHandler обрабатывает PATCH /api/suppliers/{supplierId} запрос
func (h *Handler) EditSupplierHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.SupplierPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if err := models.Validate(&patch); err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "supplierId")
	var out *models.Supplier
	err := h.Store.Atomic(r.Context(), func(repo db.Repository) error {
		supplier, err := repo.GetSupplier(r.Context(), id)
		if err != nil {
			return err
		}
		patch.Apply(supplier)
		if err := h.validateSupplier(supplier); err != nil {
			return err
		}
		if err := repo.UpdateSupplier(r.Context(), supplier); err != nil {
			return err
		}
		out = supplier
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateSupplierVerificationHandler обрабатывает PUT /api/suppliers/{supplierId}/verification запрос
func (h *Handler) UpdateSupplierVerificationHandler(w http.ResponseWriter, r *http.Request) {
	status, err := lifecycle.ParseVerificationStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	supplier, err := h.Auth.SetSupplierVerification(r.Context(), chi.URLParam(r, "supplierId"), status, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}
