package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func TestRequestIDKeepsValidHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	cases := []struct {
		name   string
		header string
		keep   bool
	}{
		{"valid", "req-123", true},
		{"empty", "", false},
		{"spaces", "has space", false},
		{"too long", strings.Repeat("a", 129), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(HeaderRequestID, tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if seen == "" || rec.Header().Get(HeaderRequestID) != seen {
				t.Fatalf("context id %q, response id %q", seen, rec.Header().Get(HeaderRequestID))
			}
			if (seen == tc.header) != tc.keep {
				t.Fatalf("id = %q, keep = %v", seen, tc.keep)
			}
		})
	}
}

func TestSessionIDFallsBackToClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if got := SessionID(req); got != "203.0.113.9" {
		t.Fatalf("fallback = %q", got)
	}
	req.Header.Set(HeaderSessionID, "sess_42")
	if got := SessionID(req); got != "sess_42" {
		t.Fatalf("header = %q", got)
	}
	req.Header.Set(HeaderSessionID, "bad/session")
	if got := SessionID(req); got != "203.0.113.9" {
		t.Fatalf("invalid header = %q", got)
	}
}

func TestLoggerRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(RequestID, Logger(zerolog.New(&buf), "/healthz"))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {})
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["route"] != "/items/{id}" || first["level"] != "warn" || first["bytes"] != float64(4) {
		t.Fatalf("unexpected line %v", first)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second["level"] != "debug" {
		t.Fatalf("health probe level = %v", second["level"])
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

	t.Run("listed origin gets credentials", func(t *testing.T) {
		h := CORS([]string{"https://app.test/"})(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.test" || rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Fatalf("headers = %v", rec.Header())
		}
		if !strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), "Retry-After") {
			t.Fatalf("expose = %q", rec.Header().Get("Access-Control-Expose-Headers"))
		}
	})

	t.Run("wildcard preflight", func(t *testing.T) {
		h := CORS([]string{"*"})(next)
		req := httptest.NewRequest(http.MethodOptions, "/api/edit", nil)
		req.Header.Set("Origin", "https://other.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" || rec.Header().Get("Access-Control-Allow-Credentials") != "" {
			t.Fatalf("headers = %v", rec.Header())
		}
		if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), HeaderSessionID) {
			t.Fatalf("allow headers = %q", rec.Header().Get("Access-Control-Allow-Headers"))
		}
	})

	t.Run("unknown origin", func(t *testing.T) {
		h := CORS([]string{"https://app.test"})(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
		}
	})
}
