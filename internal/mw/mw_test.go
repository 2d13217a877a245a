package mw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/service"
)

type fakeParser map[string]*service.Claims

func (f fakeParser) ParseToken(token string) (*service.Claims, error) {
	c, ok := f[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return c, nil
}

var testParser = fakeParser{
	"user-token":  {UserID: "u-1", Role: model.RoleUser},
	"admin-token": {UserID: "a-1", Role: model.RoleAdmin},
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(claims.UserID))
}

func TestAuth(t *testing.T) {
	h := Auth(testParser)(http.HandlerFunc(echoUser))

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{name: "no token", prepare: func(*http.Request) {}, wantCode: http.StatusUnauthorized},
		{
			name:     "bearer",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer user-token") },
			wantCode: http.StatusOK,
			wantBody: "u-1",
		},
		{
			name:     "cookie",
			prepare:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "admin-token"}) },
			wantCode: http.StatusOK,
			wantBody: "a-1",
		},
		{
			name:     "invalid",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged") },
			wantCode: http.StatusForbidden,
		},
		{
			name:     "malformed header",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Token user-token") },
			wantCode: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	h := Auth(testParser)(AdminOnly(http.HandlerFunc(echoUser)))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, "too many requests")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"), "limits are per client")

	now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1003"), "tokens refill over the window")

	now = now.Add(2 * time.Minute)
	rl.Cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.visitors)
	rl.mu.Unlock()
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodGet, "/api/products/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/products/{id}", "404")))
}
