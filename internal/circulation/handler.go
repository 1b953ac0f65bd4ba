// internal/circulation/handler.go
package circulation

import (
	"errors"
	"net/http"
	"time"

	"libraryservice/internal/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the rental endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/rentals", h.handleBook)
	r.Get("/rentals", h.handleList)
	r.Post("/rentals/{id}/return", h.handleReturn)
}

type bookRequest struct {
	BookID   string `json:"book_id" validate:"required,uuid"`
	FromDate string `json:"from_date" validate:"required,datetime=2006-01-02"`
	ToDate   string `json:"to_date" validate:"required,datetime=2006-01-02"`
}

type rentalResponse struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	BookID        uuid.UUID `json:"book_id"`
	FromDate      string    `json:"from_date"`
	ToDate        string    `json:"to_date"`
	Returned      bool      `json:"returned"`
	Status        Status    `json:"status"`
}

func toResponse(r *Reservation) rentalResponse {
	return rentalResponse{
		ReservationID: r.ID,
		BookID:        r.BookID,
		FromDate:      r.FromDate.Format(time.DateOnly),
		ToDate:        r.ToDate.Format(time.DateOnly),
		Returned:      r.Returned,
		Status:        r.Status(),
	}
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	holder, err := httpx.Holder(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, err)
		return
	}

	var req bookRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	// Formats were checked by Decode.
	bookID, _ := uuid.Parse(req.BookID)
	from, _ := time.Parse(time.DateOnly, req.FromDate)
	to, _ := time.Parse(time.DateOnly, req.ToDate)

	res, err := h.service.Book(r.Context(), BookRequest{
		HolderEmail: holder,
		BookID:      bookID,
		FromDate:    from,
		ToDate:      to,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toResponse(res))
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	holder, err := httpx.Holder(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, errors.New("invalid reservation ID"))
		return
	}

	if err := h.service.ReturnResource(r.Context(), id, holder); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	holder, err := httpx.Holder(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, err)
		return
	}

	list, err := h.service.ListReservations(r.Context(), holder)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]rentalResponse, 0, len(list))
	for i := range list {
		out = append(out, toResponse(&list[i]))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		httpx.WriteJSON(w, http.StatusBadRequest, struct {
			Message string            `json:"message"`
			Errors  map[string]string `json:"errors"`
		}{Message: "validation error", Errors: vErr.FieldErrors})
		return
	}

	switch ErrorKind(err) {
	case "not_found":
		httpx.WriteError(w, http.StatusNotFound, ErrNotFound)
	case "not_owner":
		httpx.WriteError(w, http.StatusForbidden, ErrNotOwner)
	case "resource_unavailable":
		httpx.WriteError(w, http.StatusConflict, ErrResourceUnavailable)
	case "already_returned":
		httpx.WriteError(w, http.StatusConflict, ErrAlreadyReturned)
	case "already_past_due":
		httpx.WriteError(w, http.StatusConflict, ErrAlreadyPastDue)
	case "lock_timeout":
		httpx.WriteError(w, http.StatusServiceUnavailable, ErrLockTimeout)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
