// internal/membership/handler.go
package membership

import (
	"errors"
	"net/http"

	"libraryservice/internal/httpx"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the membership endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/holders", h.handleRegister)
	r.Get("/holders/me", h.handleMe)
	r.Get("/subscriptions", h.handleListSubscriptions)
	r.Post("/subscriptions", h.handleSubscribe)
	r.Delete("/subscriptions/{category}", h.handleUnsubscribe)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
		Role  Role   `json:"role" validate:"omitempty,oneof=USER ADMIN"`
	}
	if !httpx.Decode(w, r, &req) {
		return
	}

	holder, err := h.service.RegisterHolder(r.Context(), req.Email, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, holder)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	email, err := httpx.Holder(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, err)
		return
	}

	holder, err := h.service.GetHolder(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, holder)
}

func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	email, err := httpx.Holder(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, err)
		return
	}

	subs, err := h.service.ListSubscriptions(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if subs == nil {
		subs = []Subscription{}
	}

	httpx.WriteJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	email, err := httpx.Holder(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, err)
		return
	}

	var req struct {
		Category string `json:"category" validate:"required,max=100"`
	}
	if !httpx.Decode(w, r, &req) {
		return
	}

	sub, err := h.service.Subscribe(r.Context(), email, req.Category)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	email, err := httpx.Holder(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, err)
		return
	}

	if err := h.service.Unsubscribe(r.Context(), email, chi.URLParam(r, "category")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrHolderNotFound):
		httpx.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrHolderExists), errors.Is(err, ErrAlreadySubscribed), errors.Is(err, ErrNotSubscribed):
		httpx.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, ErrRateLimited):
		httpx.WriteError(w, http.StatusTooManyRequests, err)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err)
	}
}
