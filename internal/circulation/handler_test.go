package circulation_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"libraryservice/internal/circulation"
	"libraryservice/internal/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	circulation.NewHandler(f.service).Routes(r)
	return r
}

func doRequest(h http.Handler, method, path, holder, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if holder != "" {
		req.Header.Set(httpx.HolderHeader, holder)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_BookAndReturn(t *testing.T) {
	f := newFixture(t, "a@x.io", "b@x.io")
	h := newRouter(f)

	from := f.today.AddDate(0, 0, 2).Format(time.DateOnly)
	to := f.today.AddDate(0, 0, 4).Format(time.DateOnly)
	body := `{"book_id":"` + f.book.ID.String() + `","from_date":"` + from + `","to_date":"` + to + `"}`

	rec := doRequest(h, http.MethodPost, "/rentals", "a@x.io", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ReservationID string `json:"reservation_id"`
		FromDate      string `json:"from_date"`
		ToDate        string `json:"to_date"`
		Returned      bool   `json:"returned"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, from, created.FromDate)
	assert.Equal(t, to, created.ToDate)
	assert.False(t, created.Returned)

	rec = doRequest(h, http.MethodPost, "/rentals", "b@x.io", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(h, http.MethodPost, "/rentals/"+created.ReservationID+"/return", "b@x.io", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(h, http.MethodPost, "/rentals/"+created.ReservationID+"/return", "a@x.io", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(h, http.MethodPost, "/rentals/"+created.ReservationID+"/return", "a@x.io", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(h, http.MethodGet, "/rentals", "a@x.io", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"returned"`)
}

func TestHandler_Validation(t *testing.T) {
	f := newFixture(t, "a@x.io")
	h := newRouter(f)

	rec := doRequest(h, http.MethodPost, "/rentals", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(h, http.MethodPost, "/rentals", "a@x.io", `{"book_id":"nope","from_date":"2026-13-01","to_date":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "book_id")

	past := f.today.AddDate(0, 0, -1).Format(time.DateOnly)
	body := `{"book_id":"` + f.book.ID.String() + `","from_date":"` + past + `","to_date":"` + past + `"}`
	rec = doRequest(h, http.MethodPost, "/rentals", "a@x.io", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "from_date")

	rec = doRequest(h, http.MethodPost, "/rentals/not-a-uuid/return", "a@x.io", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
