package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowWindow(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 2}, nil)
	defer rl.Stop()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("third request in the window should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other clients are counted separately")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("a new window resets the count")
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl := NewLimiter(DefaultConfig(), nil)
	defer rl.Stop()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("1.2.3.4")
	now = now.Add(11 * time.Minute)
	rl.Allow("5.6.7.8")
	rl.cleanupStaleEntries()

	if got := rl.ActiveClients(); got != 1 {
		t.Fatalf("ActiveClients = %d, want 1", got)
	}
}

func TestMiddlewareOnlyLimitsWrites(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1}, nil)
	defer rl.Stop()
	h := rl.Middleware(func(*http.Request) string { return "client" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("GET %d: status %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transaccion/nueva/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first POST: status %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transaccion/nueva/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST: status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Error("missing Retry-After")
	}
}
