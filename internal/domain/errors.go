package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrProviderFailure    = errors.New("provider failure")
	ErrServiceUnavailable = errors.New("AI image service unavailable")
	ErrNotSupported       = errors.New("operation not supported")
)

// Error codes surfaced in API error bodies.
const (
	CodeInvalidImage        = "INVALID_IMAGE"
	CodeMissingParameters   = "MISSING_PARAMETERS"
	CodeRateLimit           = "RATE_LIMIT"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeModerationBlocked   = "MODERATION_BLOCKED"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeAnalysisFailed      = "ANALYSIS_FAILED"
	CodeEditFailed          = "edit_failed"
	CodeFetchEditedImage    = "failed_to_fetch_edited_image"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeBadRequest          = "BAD_REQUEST"
	CodeInternal            = "INTERNAL_ERROR"
)

// AppError is an error that knows how it should be reported to API clients.
type AppError struct {
	Code    string
	Status  int
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

// WithCause returns a copy of e wrapping err.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

func MissingParameters(message string) *AppError {
	return NewAppError(CodeMissingParameters, http.StatusBadRequest, message)
}

func BadRequest(message string) *AppError {
	return NewAppError(CodeBadRequest, http.StatusBadRequest, message)
}

// InvalidImageError reports a rejected upload or image URL.
type InvalidImageError struct {
	Reason string
}

func (e *InvalidImageError) Error() string { return e.Reason }

func NewInvalidImage(format string, args ...any) *InvalidImageError {
	return &InvalidImageError{Reason: fmt.Sprintf(format, args...)}
}

// CreditError is returned when a user cannot afford an operation.
type CreditError struct {
	Required  int
	Available int
}

func (e *CreditError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// ModerationError is returned when an image fails content moderation.
type ModerationError struct {
	Reasons []string
}

func (e *ModerationError) Error() string {
	if len(e.Reasons) == 0 {
		return "image blocked by moderation"
	}
	return "image blocked by moderation: " + strings.Join(e.Reasons, ", ")
}

// RateLimitError is returned when a session exceeds its request window.
type RateLimitError struct {
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfter)
}

// ErrorInfo maps any error onto the status, code, message and details used in
// API responses.
func ErrorInfo(err error) (int, string, string, map[string]any) {
	var (
		appErr   *AppError
		imgErr   *InvalidImageError
		credErr  *CreditError
		modErr   *ModerationError
		limitErr *RateLimitError
	)
	switch {
	case err == nil:
		return http.StatusOK, "", "", nil
	case errors.As(err, &appErr):
		return appErr.Status, appErr.Code, appErr.Message, appErr.Details
	case errors.As(err, &imgErr):
		return http.StatusBadRequest, CodeInvalidImage, imgErr.Reason, nil
	case errors.As(err, &credErr):
		return http.StatusPaymentRequired, CodeInsufficientCredits, "Insufficient credits", map[string]any{
			"required":  credErr.Required,
			"available": credErr.Available,
		}
	case errors.As(err, &modErr):
		return http.StatusForbidden, CodeModerationBlocked, "Image blocked by moderation", map[string]any{
			"reasons": modErr.Reasons,
		}
	case errors.As(err, &limitErr):
		return http.StatusTooManyRequests, CodeRateLimit, "Too many requests", map[string]any{
			"retryAfter": limitErr.RetryAfter,
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, CodeServiceUnavailable, ErrServiceUnavailable.Error(), nil
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "not found", nil
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized, "unauthorized", nil
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error", nil
	}
}
