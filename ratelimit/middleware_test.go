package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		name    string
		trust   bool
		remote  string
		forward string
		want    string
	}{
		{"remote addr", false, "10.0.0.1:5555", "", "10.0.0.1"},
		{"forwarded ignored", false, "10.0.0.1:5555", "1.1.1.1", "10.0.0.1"},
		{"forwarded trusted", true, "10.0.0.1:5555", "1.1.1.1, 10.0.0.9", "1.1.1.1"},
		{"trusted without header", true, "10.0.0.1:5555", "", "10.0.0.1"},
		{"bare remote", false, "pipe", "", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, _ := newTestLimiter(t, func(c *Config) { c.TrustForwardedFor = tt.trust })
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.forward != "" {
				r.Header.Set("X-Forwarded-For", tt.forward)
			}
			if got := l.Identity(r); got != tt.want {
				t.Fatalf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	l, _, _ := newTestLimiter(t, func(c *Config) { c.Max = 2 })

	var seen []Decision
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, ok := DecisionFromContext(r.Context())
		if !ok {
			t.Error("Expected decision in request context")
		}
		seen = append(seen, d)
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/courses", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	for i := 0; i < 2; i++ {
		w := do()
		if w.Code != http.StatusNoContent {
			t.Fatalf("Request %d: expected 204, got %d", i, w.Code)
		}
		if got := w.Header().Get("RateLimit-Limit"); got != "2" {
			t.Fatalf("Expected RateLimit-Limit 2, got %q", got)
		}
	}
	if len(seen) != 2 || seen[1].Remaining != 0 {
		t.Fatalf("Unexpected decisions %+v", seen)
	}

	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), RejectMessage) {
		t.Fatalf("Expected reject message, got %q", w.Body.String())
	}
	if got := w.Header().Get("Retry-After"); got != "840" {
		t.Fatalf("Expected Retry-After 840, got %q", got)
	}
	if len(seen) != 2 {
		t.Fatal("Rejected request must not reach the handler")
	}
}

func TestMiddlewareFailClosed(t *testing.T) {
	l, mr, _ := newTestLimiter(t, func(c *Config) { c.Policy = FailClosed })
	mr.Close()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not run when failing closed")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}
}
