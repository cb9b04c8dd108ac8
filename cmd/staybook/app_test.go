package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/infra/config"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
)

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func newTestAPI(t *testing.T) (*apiClient, *application) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		Env:                "test",
		Storage:            config.StorageMemory,
		LockBackend:        config.LockMemory,
		LockWait:           time.Second,
		IdempotencyTTL:     time.Hour,
		OutboxPollInterval: time.Second,
		SessionTTL:         time.Hour,
		AdminEmails:        []string{"root@example.com"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := buildApplication(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(app.close)

	router := ginserver.NewRouter(obs.Middleware{Logger: logger, Metrics: app.metrics}, app.health, app.handlers)
	return &apiClient{t: t, router: router}, app
}

func (c *apiClient) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type authBody struct {
	Token string `json:"token"`
	User  struct {
		ID    string   `json:"id"`
		Roles []string `json:"roles"`
	} `json:"user"`
}

func (c *apiClient) register(email string, host bool) authBody {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":        email,
		"name":         "Test " + email,
		"password":     "correct-horse",
		"want_to_host": host,
	})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authBody](c.t, rec)
}

func (c *apiClient) login(email string) authBody {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": email, "password": "correct-horse"})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authBody](c.t, rec)
}

func dayFromToday(n int) string {
	return time.Now().UTC().AddDate(0, 0, n).Format("2006-01-02")
}

func bookingBody(propertyID string, from, to int) map[string]any {
	return map[string]any{
		"property_id": propertyID,
		"check_in":    dayFromToday(from),
		"check_out":   dayFromToday(to),
		"adults":      2,
		"price":       map[string]any{"currency": "USD", "nightly": 100, "base": 200, "total": 220},
	}
}

type bookingEnvelope struct {
	Booking struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"booking"`
}

func TestBookingFlowOverHTTP(t *testing.T) {
	api, app := newTestAPI(t)
	host := api.register("host@example.com", true)
	guest := api.register("guest@example.com", false)

	rec := api.do(http.MethodPost, "/api/v1/host/properties", host.Token, map[string]any{"title": "Lake cabin"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	property := decode[struct {
		ID     string `json:"id"`
		Active bool   `json:"is_active"`
	}](t, rec)
	require.True(t, property.Active)

	rec = api.do(http.MethodPost, "/api/v1/host/properties/"+property.ID+"/blocked-dates", host.Token, map[string]any{"dates": []string{dayFromToday(10)}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/v1/properties/"+property.ID+"/availability?check_in="+dayFromToday(3)+"&check_out="+dayFromToday(5), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[struct {
		Available bool `json:"available"`
	}](t, rec).Available)

	rec = api.do(http.MethodPost, "/api/v1/bookings", guest.Token, bookingBody(property.ID, 3, 5), "Idempotency-Key", "req-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[bookingEnvelope](t, rec)
	assert.Equal(t, "pending", created.Booking.Status)

	rec = api.do(http.MethodPost, "/api/v1/bookings", guest.Token, bookingBody(property.ID, 3, 5), "Idempotency-Key", "req-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, created.Booking.ID, decode[bookingEnvelope](t, rec).Booking.ID)

	rec = api.do(http.MethodPost, "/api/v1/bookings", guest.Token, bookingBody(property.ID, 4, 6))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/v1/bookings", guest.Token, bookingBody(property.ID, 8, 10))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/v1/bookings", guest.Token, bookingBody(property.ID, -3, -1))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/v1/bookings", "", bookingBody(property.ID, 5, 7))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/properties/"+property.ID+"/availability?check_in="+dayFromToday(4)+"&check_out="+dayFromToday(6), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	verdict := decode[struct {
		Available bool   `json:"available"`
		Reason    string `json:"reason"`
	}](t, rec)
	assert.False(t, verdict.Available)
	assert.Equal(t, "booking_conflict", verdict.Reason)

	rec = api.do(http.MethodGet, "/api/v1/host/properties/"+property.ID+"/bookings", guest.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPut, "/api/v1/host/bookings/"+created.Booking.ID+"/status", host.Token, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/v1/bookings/"+created.Booking.ID+"/cancel", guest.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode[struct {
		Status string `json:"status"`
	}](t, rec).Status)

	rec = api.do(http.MethodPost, "/api/v1/bookings/"+created.Booking.ID+"/cancel", guest.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPut, "/api/v1/host/bookings/"+created.Booking.ID+"/status", host.Token, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/v1/properties/"+property.ID+"/reviews", guest.Token, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/v1/me/bookings", guest.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, rec).Items, 1)

	_, err := app.worker.Drain(context.Background())
	require.NoError(t, err)
}

func TestAdminDeleteUserOverHTTP(t *testing.T) {
	api, _ := newTestAPI(t)
	host := api.register("host@example.com", true)
	guest := api.register("guest@example.com", false)
	api.register("root@example.com", false)
	admin := api.login("root@example.com")
	assert.Contains(t, admin.User.Roles, "admin")

	rec := api.do(http.MethodPost, "/api/v1/host/properties", host.Token, map[string]any{"title": "Studio"})
	require.Equal(t, http.StatusCreated, rec.Code)
	propertyID := decode[struct {
		ID string `json:"id"`
	}](t, rec).ID

	rec = api.do(http.MethodPost, "/api/v1/bookings", guest.Token, bookingBody(propertyID, 2, 4))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bookingID := decode[bookingEnvelope](t, rec).Booking.ID

	rec = api.do(http.MethodDelete, "/api/v1/admin/users/"+guest.User.ID, host.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodDelete, "/api/v1/admin/users/"+admin.User.ID, admin.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodDelete, "/api/v1/admin/users/"+guest.User.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[struct {
		Cancelled int `json:"cancelled"`
	}](t, rec).Cancelled)

	rec = api.do(http.MethodGet, "/api/v1/bookings/"+bookingID, guest.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/host/properties/"+propertyID+"/bookings?status=cancelled", host.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, rec).Items, 1)

	rec = api.do(http.MethodDelete, "/api/v1/admin/users/"+guest.User.ID, admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := api.do(http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	api.do(http.MethodGet, "/api/v1/properties/missing", "", nil)
	rec = api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "staybook_")
}

func TestAuthEndpoints(t *testing.T) {
	api, _ := newTestAPI(t)
	user := api.register("someone@example.com", false)

	rec := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "someone@example.com", "name": "Again", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "short@example.com", "name": "Short", "password": "abc",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "someone@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/auth/me", user.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"guest"}, decode[struct {
		Roles []string `json:"roles"`
	}](t, rec).Roles)

	rec = api.do(http.MethodPost, "/api/v1/auth/logout", user.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/auth/me", user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
