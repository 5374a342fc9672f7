package ratelimit

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

func TestGlobalLimiter_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GlobalEnabled = false

	handler := GlobalLimiter(cfg)(okHandler())
	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/webhook/payments", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d with limiter disabled", i, rec.Code)
		}
	}
}

func TestGlobalLimiter_Enforces(t *testing.T) {
	cfg := Config{
		GlobalEnabled: true,
		GlobalLimit:   3,
		GlobalWindow:  time.Minute,
	}

	handler := GlobalLimiter(cfg)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/webhook/payments", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/webhook/payments", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("over-limit status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}

func TestIPLimiter_SeparatesClients(t *testing.T) {
	cfg := Config{
		PerIPEnabled: true,
		PerIPLimit:   2,
		PerIPWindow:  time.Minute,
	}

	handler := IPLimiter(cfg)(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest("POST", "/webhook/payments", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// First client exhausts its allowance
	send("10.0.0.1:1234")
	send("10.0.0.1:1234")
	if code := send("10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("exhausted client status = %d, want 429", code)
	}

	// Second client is unaffected
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("fresh client status = %d, want 200", code)
	}
}
