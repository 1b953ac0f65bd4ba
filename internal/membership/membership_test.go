package membership_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"libraryservice/internal/httpx"
	"libraryservice/internal/membership"
	"libraryservice/internal/paging"
	"libraryservice/internal/storage/memory"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHolder(t *testing.T) {
	svc := membership.NewService(memory.New(time.Second), nil, nil)
	ctx := context.Background()

	holder, err := svc.RegisterHolder(ctx, "  Ada@Example.com ", "")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", holder.Email)
	assert.Equal(t, membership.RoleUser, holder.Role)

	_, err = svc.RegisterHolder(ctx, "ADA@example.com", membership.RoleAdmin)
	assert.ErrorIs(t, err, membership.ErrHolderExists)

	got, err := svc.GetHolder(ctx, "ada@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, holder.Email, got.Email)

	_, err = svc.GetHolder(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, membership.ErrHolderNotFound)
}

func TestRegisterHolder_RateLimited(t *testing.T) {
	svc := membership.NewService(memory.New(time.Second), nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.RegisterHolder(ctx, fmt.Sprintf("h%d@example.com", i), "")
		require.NoError(t, err)
	}
	_, err := svc.RegisterHolder(ctx, "h5@example.com", "")
	assert.ErrorIs(t, err, membership.ErrRateLimited)
}

func TestSubscriptions(t *testing.T) {
	store := memory.New(time.Second)
	svc := membership.NewService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.RegisterHolder(ctx, "ada@example.com", "")
	require.NoError(t, err)

	sub, err := svc.Subscribe(ctx, "Ada@example.com", "SciFi")
	require.NoError(t, err)
	assert.True(t, sub.Active)
	assert.Equal(t, "ada@example.com", sub.HolderEmail)

	_, err = svc.Subscribe(ctx, "ada@example.com", "SciFi")
	assert.ErrorIs(t, err, membership.ErrAlreadySubscribed)

	_, err = svc.Subscribe(ctx, "ada@example.com", "History")
	require.NoError(t, err)

	subs, err := svc.ListSubscriptions(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	page, err := store.ActiveSubscriptions(ctx, "SciFi", paging.Page{Size: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	require.NoError(t, svc.Unsubscribe(ctx, "ada@example.com", "SciFi"))
	assert.ErrorIs(t, svc.Unsubscribe(ctx, "ada@example.com", "SciFi"), membership.ErrNotSubscribed)

	subs, err = svc.ListSubscriptions(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "History", subs[0].Category)

	_, err = svc.Subscribe(ctx, "ada@example.com", "SciFi")
	assert.NoError(t, err, "resubscribing after unsubscribe")
}

func TestSubscriptions_UnknownHolder(t *testing.T) {
	svc := membership.NewService(memory.New(time.Second), nil, nil)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, "ghost@example.com", "SciFi")
	assert.ErrorIs(t, err, membership.ErrHolderNotFound)
	assert.ErrorIs(t, svc.Unsubscribe(ctx, "ghost@example.com", "SciFi"), membership.ErrHolderNotFound)
	_, err = svc.ListSubscriptions(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, membership.ErrHolderNotFound)
}

func doRequest(router http.Handler, method, path, holder, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if holder != "" {
		req.Header.Set(httpx.HolderHeader, holder)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler(t *testing.T) {
	r := chi.NewRouter()
	membership.NewHandler(membership.NewService(memory.New(time.Second), nil, nil)).Routes(r)

	rec := doRequest(r, http.MethodPost, "/holders", "", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(r, http.MethodPost, "/holders", "", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(r, http.MethodPost, "/holders", "", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, http.MethodPost, "/holders", "", `{"email":"bob@example.com","role":"ROOT"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, http.MethodGet, "/holders/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(r, http.MethodGet, "/holders/me", "Ada@Example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var holder membership.Holder
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&holder))
	assert.Equal(t, "ada@example.com", holder.Email)

	rec = doRequest(r, http.MethodPost, "/subscriptions", "ada@example.com", `{"category":"SciFi"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(r, http.MethodGet, "/subscriptions", "ada@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []membership.Subscription
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&subs))
	assert.Len(t, subs, 1)

	rec = doRequest(r, http.MethodDelete, "/subscriptions/SciFi", "ada@example.com", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(r, http.MethodDelete, "/subscriptions/SciFi", "ada@example.com", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(r, http.MethodGet, "/subscriptions", "ghost@example.com", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
