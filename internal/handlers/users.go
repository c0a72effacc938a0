package handlers

import (
	"net/http"

	"sourcing/db"
	"sourcing/internal/lifecycle"
	"sourcing/models"

	"github.com/go-chi/chi/v5"
)

// CreateUserHandler обрабатывает POST /api/users/new запрос
func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if !decodeJSON(w, r, &user) {
		return
	}
	if err := models.Validate(&user); err != nil {
		writeError(w, err)
		return
	}

	user.ID = ""
	user.VerificationStatus = models.VerificationPending
	if err := h.Store.CreateUser(r.Context(), &user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUsersHandler обрабатывает GET /api/users запрос с фильтрами и пагинацией
func (h *Handler) GetUsersHandler(w http.ResponseWriter, r *http.Request) {
	page, err := parsePaginationParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	filter := db.UserFilter{
		UserType: models.UserType(q.Get("userType")),
		Email:    q.Get("email"),
		Page:     page,
	}
	if s := q.Get("verificationStatus"); s != "" {
		if filter.VerificationStatus, err = lifecycle.ParseVerificationStatus(s); err != nil {
			writeError(w, err)
			return
		}
	}

	users, err := h.Store.ListUsers(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(users))
}

// GetUserHandler обрабатывает GET /api/users/{userId} запрос
func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.Store.GetUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// EditUserHandler обрабатывает PATCH /api/users/{userId} запрос
func (h *Handler) EditUserHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.UserPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if err := models.Validate(&patch); err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "userId")
	var out *models.User
	err := h.Store.Atomic(r.Context(), func(repo db.Repository) error {
		user, err := repo.GetUser(r.Context(), id)
		if err != nil {
			return err
		}
		patch.Apply(user)
		if err := models.Validate(user); err != nil {
			return err
		}
		if err := repo.UpdateUser(r.Context(), user); err != nil {
			return err
		}
		out = user
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateUserVerificationHandler обрабатывает PUT /api/users/{userId}/verification запрос
func (h *Handler) UpdateUserVerificationHandler(w http.ResponseWriter, r *http.Request) {
	status, err := lifecycle.ParseVerificationStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.Auth.SetUserVerification(r.Context(), chi.URLParam(r, "userId"), status, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
