package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type requestIDKey struct{}

const (
	HeaderRequestID = "X-Request-ID"
	HeaderSessionID = "X-Session-Id"
)

// Client supplied ids are echoed into logs and cache keys, so only short
// tokens made of safe characters are accepted.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID tags each request with the caller's X-Request-ID or a fresh UUID
// and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(HeaderRequestID)
		if !idPattern.MatchString(rid) {
			rid = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, rid)))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// SessionID identifies the caller for rate limits and credits: the
// X-Session-Id header when it is well formed, otherwise the client IP.
func SessionID(r *http.Request) string {
	if sid := r.Header.Get(HeaderSessionID); idPattern.MatchString(sid) {
		return sid
	}
	return ClientIP(r)
}
