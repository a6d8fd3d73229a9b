package middleware

import (
	"net/http"
	"strings"
)

var (
	corsAllowHeaders  = strings.Join([]string{"Authorization", "Content-Type", "X-Locale", HeaderSessionID, HeaderRequestID, "X-Admin-Token"}, ", ")
	corsExposeHeaders = strings.Join([]string{HeaderRequestID, "Retry-After", "X-Cache", "Content-Language"}, ", ")
)

// CORS allows the listed origins. A "*" entry allows any origin but never
// with credentials. Preflights are answered directly.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allow := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allow[strings.TrimRight(strings.TrimSpace(origin), "/")] = true
	}
	wildcard := allow["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")
			allowed := origin != "" && (allow[origin] || wildcard)
			if allowed {
				if allow[origin] {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
				} else {
					h.Set("Access-Control-Allow-Origin", "*")
				}
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
					h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
					h.Set("Access-Control-Max-Age", "600")
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
