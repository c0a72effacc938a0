package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"sourcing/db"
	"sourcing/internal/config"
	"sourcing/internal/expiry"
	"sourcing/internal/lifecycle"
	"sourcing/internal/matching"
	"sourcing/internal/review"
	"sourcing/internal/samples"
	"sourcing/models"
)

const maxBodySize = 1048576

type Handler struct {
	Store   db.Store
	Config  config.Config
	Auth    *lifecycle.Authority
	Matcher *matching.Engine
	Flow    *review.Workflow
	Samples *samples.Service
	Sweeper *expiry.Sweeper
}

// NewHandler собирает сервисы поверх одного хранилища
func NewHandler(store db.Store, cfg config.Config) *Handler {
	auth := lifecycle.NewAuthority(store, cfg)
	return &Handler{
		Store:   store,
		Config:  cfg,
		Auth:    auth,
		Matcher: auth.Matcher(),
		Flow:    review.NewWorkflow(store, auth, cfg),
		Samples: samples.NewService(store, auth),
		Sweeper: expiry.NewSweeper(store, auth, cfg.ExpirySweepInterval),
	}
}

// PingHandler обрабатывает GET /api/ping запрос
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// decodeJSON читает тело запроса не больше maxBodySize байт.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, dst); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// statusFor переводит доменную ошибку в HTTP-статус.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrCapExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrDuplicateOrder),
		errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		http.Error(w, "Internal server error", status)
		return
	}
	writeJSON(w, status, map[string]string{"reason": err.Error()})
}

// Функция парсинга limit и offset из query параметров
func parsePaginationParams(r *http.Request) (db.Page, error) {
	p := db.Page{Limit: 20}
	q := r.URL.Query()

	if l := q.Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 || v > 100 {
			return p, models.Invalid("limit", "must be between 1 and 100")
		}
		p.Limit = v
	}
	if o := q.Get("offset"); o != "" {
		v, err := strconv.Atoi(o)
		if err != nil || v < 0 {
			return p, models.Invalid("offset", "must be non-negative")
		}
		p.Offset = v
	}
	return p, nil
}

// actor - кто выполняет действие; попадает в журнал статусов.
func actor(r *http.Request) string {
	return r.URL.Query().Get("actor")
}

// items возвращает пустой срез вместо nil, чтобы в JSON был [], а не null.
func items[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
