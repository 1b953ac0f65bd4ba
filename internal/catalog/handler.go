// internal/catalog/handler.go
package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"libraryservice/internal/httpx"
	"libraryservice/internal/paging"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/books", h.handleAddBook)
	r.Get("/books", h.handleListBooks)
	r.Get("/books/{id}", h.handleGetBook)
	r.Post("/books/{id}/block", h.handleBlockBook)
}

type listResponse struct {
	Items   []Book `json:"items"`
	Page    int    `json:"page"`
	HasNext bool   `json:"has_next"`
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req NewBook
	if !httpx.Decode(w, r, &req) {
		return
	}

	book, err := h.service.AddBook(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	page := paging.Page{
		Number: queryInt(r, "page", 0),
		Size:   queryInt(r, "size", 20),
	}
	if page.Number < 0 || page.Size <= 0 || page.Size > 500 {
		httpx.WriteError(w, http.StatusBadRequest, errors.New("invalid page parameters"))
		return
	}

	slice, err := h.service.ListBooks(r.Context(), page)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	items := slice.Items
	if items == nil {
		items = []Book{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Items: items, Page: page.Number, HasNext: slice.HasNext})
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, errors.New("invalid book ID"))
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, err)
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleBlockBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, errors.New("invalid book ID"))
		return
	}

	if err := h.service.BlockBook(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotBlockable) {
			httpx.WriteError(w, http.StatusNotFound, err)
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
