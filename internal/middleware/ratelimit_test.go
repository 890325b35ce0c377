package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIPForRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr with port", "203.0.113.7:4321", "", "203.0.113.7"},
		{"remote addr without port", "203.0.113.7", "", "203.0.113.7"},
		{"forwarded for wins", "10.0.0.1:80", "198.51.100.2", "198.51.100.2"},
		{"forwarded for list", "10.0.0.1:80", "198.51.100.2, 10.0.0.1", "198.51.100.2"},
		{"garbage forwarded for ignored", "203.0.113.7:4321", "not-an-ip", "203.0.113.7"},
		{"ipv6 remote", "[2001:db8::1]:443", "", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIPForRateLimit(r); got != tt.want {
				t.Errorf("clientIPForRateLimit() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitEnforcesLimit(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	if got := do("203.0.113.7:1").Code; got != http.StatusOK {
		t.Fatalf("first request = %d", got)
	}
	if got := do("203.0.113.7:2").Code; got != http.StatusOK {
		t.Fatalf("second request = %d", got)
	}
	third := do("203.0.113.7:3")
	if third.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", third.Code)
	}
	if third.Header().Get("Retry-After") == "" {
		t.Error("rejected request must carry a Retry-After hint")
	}

	// Another client has its own window.
	if got := do("198.51.100.2:1").Code; got != http.StatusOK {
		t.Fatalf("other client = %d", got)
	}
}
