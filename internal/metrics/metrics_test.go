package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/engine", "/api/v1/engine"},
		{"/api/v1/catalog", "/api/v1/catalog"},
		{"/api/v1/catalog/refresh", "/api/v1/catalog/refresh"},
		{"/api/v1/propagate", "/api/v1/propagate"},
		{"/api/v1/risk", "/api/v1/risk"},
		{"/api/v1/stream/positions", "/api/v1/stream/positions"},

		// Trailing slash is the same route.
		{"/api/v1/risk/", "/api/v1/risk"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/api/v1/propagate/25544", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 unknown paths produce exactly 1
// distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[normalizeRoute("/probe/"+strconv.Itoa(i))] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for unknown paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/v1/risk", "POST", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/risk", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/v1/risk", "POST", "418"))

	if after-before != 1 {
		t.Errorf("request counter moved by %v, want 1", after-before)
	}
}

func TestRecordPropagation(t *testing.T) {
	okBefore := testutil.ToFloat64(propagationObjects.WithLabelValues("ok"))
	failedBefore := testutil.ToFloat64(propagationObjects.WithLabelValues("failed"))

	RecordPropagation(10*time.Millisecond, 7, 2)

	if got := testutil.ToFloat64(propagationObjects.WithLabelValues("ok")) - okBefore; got != 7 {
		t.Errorf("ok objects moved by %v, want 7", got)
	}
	if got := testutil.ToFloat64(propagationObjects.WithLabelValues("failed")) - failedBefore; got != 2 {
		t.Errorf("failed objects moved by %v, want 2", got)
	}
}
