package middleware

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

func TestRequireKey(t *testing.T) {
	h := RequireKey([]string{"k1", "k2"})(okHandler())

	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"none", "", "", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "nope", http.StatusUnauthorized},
		{"api key", "X-API-Key", "k1", http.StatusOK},
		{"bearer", "Authorization", "Bearer k2", http.StatusOK},
		{"bearer lowercase", "Authorization", "bearer k1", http.StatusOK},
		{"bearer empty", "Authorization", "Bearer ", http.StatusUnauthorized},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/sites", nil)
		if c.header != "" {
			req.Header.Set(c.header, c.value)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != c.want {
			t.Fatalf("%s: want %d, got %d", c.name, c.want, rr.Code)
		}
	}
}

func TestRequireKey_NoKeysIsOpen(t *testing.T) {
	h := RequireKey(nil)(okHandler())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200 with no keys configured, got %d", rr.Code)
	}
}

func TestLimiter_RefillsAndEvicts(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	l := NewLimiter(60, time.Minute) // 1/s, burst 15
	l.now = func() time.Time { return clock }

	for i := 0; i < 15; i++ {
		if !l.Allow("a") {
			t.Fatalf("request %d within burst denied", i)
		}
	}
	if l.Allow("a") {
		t.Fatalf("burst exhausted; want deny")
	}
	clock = clock.Add(time.Second)
	if !l.Allow("a") {
		t.Fatalf("want one token after 1s")
	}
	if !l.Allow("b") {
		t.Fatalf("other keys have their own bucket")
	}

	clock = clock.Add(2 * time.Minute)
	l.Allow("c")
	if n := l.Len(); n != 1 {
		t.Fatalf("idle buckets should be swept, have %d", n)
	}
}

func TestRateLimit_Returns429(t *testing.T) {
	h := RateLimit(1)(okHandler()) // burst 1
	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	if c := send(); c != http.StatusOK {
		t.Fatalf("first request: %d", c)
	}
	if c := send(); c != http.StatusTooManyRequests {
		t.Fatalf("second request: want 429, got %d", c)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if ip := ClientIP(req); ip != "192.0.2.1" {
		t.Fatalf("want remote host, got %q", ip)
	}
	req.Header.Set("X-Forwarded-For", " 198.51.100.7 ,10.0.0.1")
	if ip := ClientIP(req); ip != "198.51.100.7" {
		t.Fatalf("want first forwarded hop, got %q", ip)
	}
}
