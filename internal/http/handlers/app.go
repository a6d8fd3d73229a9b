package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"retouch/internal/cache"
	"retouch/internal/credits"
	"retouch/internal/domain"
	"retouch/internal/infra"
	"retouch/internal/metrics"
	"retouch/internal/moderation"
	"retouch/internal/storage"
	"retouch/internal/studio"
)

type Moderator interface {
	Check(ctx context.Context, imageURL string) moderation.Result
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

type Resizer interface {
	Resize(ctx context.Context, url string, w, h int) ([]byte, bool, error)
}

type Registry interface {
	List() ([]domain.RegistryItem, error)
	Remove(publicID string) (bool, error)
}

// EnvPresence reports which provider credentials are configured without
// exposing their values.
type EnvPresence struct {
	GeminiAPIKey     bool `json:"geminiApiKeyPresent"`
	GeminiRESTURL    bool `json:"geminiRestUrlPresent"`
	NanoBananaURL    bool `json:"nanobananaUrlPresent"`
	NanoBananaAPIKey bool `json:"nanobananaKeyPresent"`
	VisionAPIKey     bool `json:"visionApiKeyPresent"`
	Redis            bool `json:"redisPresent"`
	Database         bool `json:"databasePresent"`
}

type App struct {
	Studio    *studio.Service
	Moderator Moderator
	Fetcher   Fetcher
	Resizer   Resizer
	Credits   *credits.Service
	Registry  Registry
	Store     storage.Store
	Metrics   *metrics.Tracker
	Cache     cache.Cache

	Env            EnvPresence
	Production     bool
	MaxUploadBytes int64
	Logger         infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// fail maps err through the domain taxonomy. Server errors are logged with
// the route phase.
func (a *App) fail(w http.ResponseWriter, phase string, err error) {
	status, code, message, details := domain.ErrorInfo(err)
	var limitErr *domain.RateLimitError
	if errors.As(err, &limitErr) {
		w.Header().Set("Retry-After", strconv.Itoa(limitErr.RetryAfter))
	}
	ev := a.Logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = a.Logger.Error()
	}
	ev.Err(err).Str("phase", phase+".error").Int("status", status).Str("code", code).Msg("request failed")
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message, Details: details}})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	a.error(w, http.StatusBadRequest, domain.CodeBadRequest, "invalid JSON body")
	return false
}
