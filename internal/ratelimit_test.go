package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestRateLimitBurst tests that a client gets its burst and is then refused.
func TestRateLimitBurst(t *testing.T) {
	handler := NewRateLimitHandler(okHandler(), 1, 3, time.Minute)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.RemoteAddr = "192.0.2.10:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

// TestRateLimitPerClient tests that limits are tracked per client address.
func TestRateLimitPerClient(t *testing.T) {
	handler := NewRateLimitHandler(okHandler(), 1, 1, time.Minute)

	first := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	first.RemoteAddr = "192.0.2.10:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first client: status = %d, want 200", rec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	second.RemoteAddr = "192.0.2.20:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client: status = %d, want 200", rec.Code)
	}
}

// TestRateLimitDisabled tests that a non-positive rate disables limiting.
func TestRateLimitDisabled(t *testing.T) {
	handler := NewRateLimitHandler(okHandler(), 0, 0, time.Minute)

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
}

// TestClientIP tests header precedence in client address extraction.
func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:9999"

	if ip := ClientIP(req); ip != "192.0.2.1" {
		t.Fatalf("remote addr ip = %s, want 192.0.2.1", ip)
	}

	req.Header.Set("X-Real-Ip", "198.51.100.7")
	if ip := ClientIP(req); ip != "198.51.100.7" {
		t.Fatalf("real-ip = %s, want 198.51.100.7", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ClientIP(req); ip != "203.0.113.9" {
		t.Fatalf("forwarded-for ip = %s, want 203.0.113.9", ip)
	}
}
