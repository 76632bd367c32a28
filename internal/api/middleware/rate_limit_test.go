package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_AllowsWithinBudget(t *testing.T) {
	h := RateLimit(5)(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		req.RemoteAddr = "203.0.113.5:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	h := RateLimit(2)(okHandler())

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		req.RemoteAddr = "203.0.113.5:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 on third request, got %d", last)
	}
}

func TestRateLimit_PerIPBuckets(t *testing.T) {
	h := RateLimit(1)(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/run", nil)
	first.RemoteAddr = "203.0.113.5:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for first IP, got %d", rec.Code)
	}

	// A different client gets its own bucket
	second := httptest.NewRequest(http.MethodPost, "/run", nil)
	second.RemoteAddr = "203.0.113.6:1000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for second IP, got %d", rec.Code)
	}
}

func TestGetClientIP_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if ip := getClientIP(req); ip != "198.51.100.7" {
		t.Errorf("Expected first forwarded IP, got %q", ip)
	}

	req.Header.Del("X-Forwarded-For")
	if ip := getClientIP(req); ip != "10.0.0.1" {
		t.Errorf("Expected remote addr host, got %q", ip)
	}
}
