package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeVerifier map[string]string

func (f fakeVerifier) Verify(token string) (string, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return "", errors.New("nope")
}

func TestRequireAuth(t *testing.T) {
	auth := NewAuthMiddleware(fakeVerifier{"good": "alice"})
	var seen string
	h := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer bad", http.StatusUnauthorized},
		{"ok", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			r := httptest.NewRequest("GET", "/api/users", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status == http.StatusOK && seen != "alice" {
				t.Fatalf("context user = %q", seen)
			}
			if tt.status == http.StatusUnauthorized && !strings.Contains(w.Body.String(), `"error"`) {
				t.Fatalf("expected JSON error body, got %s", w.Body.String())
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/messages/abc":         "/api/messages/:userId",
		"/api/messages":             "/api/messages",
		"/api/rooms/lobby/messages": "/api/rooms/:roomId/messages",
		"/api/users/123":            "/api/users/:id",
		"/api/users":                "/api/users",
		"/health":                   "/health",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateRequest(t *testing.T) {
	h := ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest("POST", "/api/messages", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}

	r = httptest.NewRequest("GET", "/api/messages/x?q=<script>", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	r = httptest.NewRequest("GET", "/ws?token=eyJhbGciOi.eyJ1c2Vy.sig", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("token query rejected with %d", w.Code)
	}
}

func TestMaxBodySize(t *testing.T) {
	h := MaxBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	r := httptest.NewRequest("POST", "/api/messages", strings.NewReader(`{"content":"too long"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("Content-Security-Policy") == "" {
		t.Fatal("missing security headers")
	}
}

func TestRateLimitRouting(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{
		Whitelist: []string{"10.0.0.1", "192.168.0.0/16", "bogus/99"},
	})

	r := httptest.NewRequest("POST", "/api/messages", nil)
	if l := rl.findLimit(r); l == nil || l.Requests != 60 || l.Window != time.Minute {
		t.Fatalf("unexpected limit for send: %+v", l)
	}
	r = httptest.NewRequest("GET", "/api/messages/bob", nil)
	if l := rl.findLimit(r); l == nil || l.Requests != 120 {
		t.Fatalf("unexpected limit for history: %+v", l)
	}
	r = httptest.NewRequest("DELETE", "/api/messages/bob", nil)
	if l := rl.findLimit(r); l != nil {
		t.Fatalf("expected no limit, got %+v", l)
	}

	if !rl.isWhitelisted("10.0.0.1") || !rl.isWhitelisted("192.168.4.2") || rl.isWhitelisted("8.8.8.8") {
		t.Fatal("whitelist matching is wrong")
	}
}

func TestRateLimitKeys(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/users", nil)
	r.RemoteAddr = "203.0.113.7:5555"
	if got := tokenOrIPKey(r); got != "ratelimit:ip:203.0.113.7" {
		t.Fatalf("anonymous key = %q", got)
	}

	r.Header.Set("Authorization", "Bearer abc")
	a := tokenOrIPKey(r)
	r.Header.Set("Authorization", "Bearer xyz")
	b := tokenOrIPKey(r)
	if !strings.HasPrefix(a, "ratelimit:token:") || a == b {
		t.Fatalf("token keys should differ per token: %q %q", a, b)
	}

	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	if got := RealIP(r); got != "198.51.100.1" {
		t.Fatalf("RealIP = %q", got)
	}
}
