package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"workshop/internal/config"
)

func authConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "desk-key", Extra: "desk-extra", Permissions: []string{permReadBookings, permWriteBookings}},
				{Key: "admin-key", Extra: "admin-extra"},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHTTPAuth(t *testing.T) {
	handler := NewHTTPAuth(authConfig()).Wrap(okHandler())

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		extra  string
		want   int
	}{
		{"Success", http.MethodGet, "/api/v1/bookings", "desk-key", "desk-extra", http.StatusOK},
		{"WritePermission", http.MethodPut, "/api/v1/bookings/1", "desk-key", "desk-extra", http.StatusOK},
		{"MissingHeaders", http.MethodGet, "/api/v1/bookings", "", "", http.StatusUnauthorized},
		{"InvalidKey", http.MethodGet, "/api/v1/bookings", "nope", "desk-extra", http.StatusUnauthorized},
		{"InvalidExtra", http.MethodGet, "/api/v1/bookings", "desk-key", "wrong", http.StatusUnauthorized},
		{"PermissionDenied", http.MethodPost, "/api/v1/invoices/previews", "desk-key", "desk-extra", http.StatusForbidden},
		{"EmptyPermissionsAllowAll", http.MethodPost, "/api/v1/invoices/previews", "admin-key", "admin-extra", http.StatusOK},
		{"PublicHealth", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"PublicMetrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("x-api-key", tt.key)
			}
			if tt.extra != "" {
				req.Header.Set("x-api-extra", tt.extra)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHTTPAuth_Disabled(t *testing.T) {
	cfg := authConfig()
	cfg.Auth.Enabled = false
	handler := NewHTTPAuth(cfg).Wrap(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPAuth_RateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled:   true,
		Auth:      config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1},
	}
	handler := NewHTTPAuth(cfg).Wrap(okHandler())

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
		req.Header.Set("x-api-key", key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("key1"))
	assert.Equal(t, http.StatusTooManyRequests, send("key1"))
	// limiters are per key
	assert.Equal(t, http.StatusOK, send("key2"))
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/v1/bookings", permReadBookings},
		{http.MethodPut, "/api/v1/bookings/5", permWriteBookings},
		{http.MethodPost, "/api/v1/invoices/lines", permWriteInvoices},
		{http.MethodGet, "/api/v1/invoices/previews/x/report.xlsx", permWriteInvoices},
		{http.MethodGet, "/api/v1/inventory", permReadInventory},
		{http.MethodGet, "/api/v1/notifications", permReadInventory},
		{http.MethodGet, "/other", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		assert.Equal(t, tt.want, requiredPermission(req), tt.path)
	}
}

func TestClientKey(t *testing.T) {
	auth := NewHTTPAuth(config.APIConfig{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", auth.clientKey(req))

	req.Header.Set("x-api-key", "k1")
	assert.Equal(t, "k1", auth.clientKey(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "garbage"
	assert.Equal(t, clientKeyUnknown, auth.clientKey(req))
}
