package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"health is public", "GET", "/healthz", "", http.StatusOK},
		{"catalog is public", "GET", "/api/v1/catalog", "", http.StatusOK},
		{"positions are public", "GET", "/api/v1/propagate", "", http.StatusOK},
		{"refresh needs token", "POST", "/api/v1/catalog/refresh", "", http.StatusUnauthorized},
		{"risk needs token", "POST", "/api/v1/risk", "", http.StatusUnauthorized},
		{"wrong token", "POST", "/api/v1/risk", "Bearer nope", http.StatusUnauthorized},
		{"missing bearer prefix", "POST", "/api/v1/risk", "s3cret", http.StatusUnauthorized},
		{"valid token", "POST", "/api/v1/engine", "Bearer s3cret", http.StatusOK},
		{"scheme is case-insensitive", "POST", "/api/v1/engine", "bearer s3cret", http.StatusOK},
		{"empty bearer", "POST", "/api/v1/engine", "Bearer ", http.StatusUnauthorized},
		{"public path needs token for writes", "POST", "/api/v1/catalog", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 should carry a WWW-Authenticate challenge")
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/risk", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}
