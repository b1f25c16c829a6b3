package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:4200"})(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	r.Header.Set("Origin", "http://localhost:4200")
	h.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Allow-Origin = %q, want configured origin", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("Allow-Headers missing")
	}
}

func TestCORSMiddleware_UnknownOrigin(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:4200"})(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	r.Header.Set("Origin", "http://evil.example")
	h.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for unknown origin, want empty", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:4200"})(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/api/threads", nil)
	r.Header.Set("Origin", "http://localhost:4200")
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var inHandler string
	h := requestIDMiddleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		inHandler = requestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	got := w.Header().Get("X-Request-ID")
	if got == "" {
		t.Fatal("X-Request-ID header not set")
	}
	if inHandler != got {
		t.Errorf("context request ID = %q, header = %q", inHandler, got)
	}
}

func TestRequestIDMiddleware_ReusesValidID(t *testing.T) {
	h := requestIDMiddleware()(okHandler())

	const want = "9f2c7d7e-52a4-4f4e-9f51-0f1d9ec1c0aa"
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", want)
	h.ServeHTTP(w, r)

	if got := w.Header().Get("X-Request-ID"); got != want {
		t.Errorf("X-Request-ID = %q, want %q", got, want)
	}
}

func TestRequestIDMiddleware_ReplacesInvalidID(t *testing.T) {
	h := requestIDMiddleware()(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "not-a-valid-uuid")
	h.ServeHTTP(w, r)

	if got := w.Header().Get("X-Request-ID"); got == "not-a-valid-uuid" || got == "" {
		t.Errorf("X-Request-ID = %q, want a fresh UUID", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("panicking handler status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := chain(okHandler(), mw("first"), mw("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("middleware order = %v, want [first second]", order)
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := newRateLimiter(0.001, 2)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request denied")
	}
	if !rl.allow("10.0.0.1") {
		t.Fatal("second request within burst denied")
	}
	if rl.allow("10.0.0.1") {
		t.Error("request beyond burst allowed")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other IP affected by first IP's bucket")
	}
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	rl := newRateLimiter(0.001, 1)
	h := rateLimitMiddleware(rl, false, slog.New(slog.DiscardHandler))(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:12345"

	h.ServeHTTP(httptest.NewRecorder(), r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr only", "192.0.2.1:1234", nil, false, "192.0.2.1"},
		{"proxy headers ignored when untrusted", "192.0.2.1:1234",
			map[string]string{"X-Real-IP": "203.0.113.9"}, false, "192.0.2.1"},
		{"x-real-ip trusted", "192.0.2.1:1234",
			map[string]string{"X-Real-IP": "203.0.113.9"}, true, "203.0.113.9"},
		{"x-forwarded-for first entry", "192.0.2.1:1234",
			map[string]string{"X-Forwarded-For": "203.0.113.9, 198.51.100.2"}, true, "203.0.113.9"},
		{"invalid header falls back", "192.0.2.1:1234",
			map[string]string{"X-Real-IP": "not-an-ip"}, true, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
