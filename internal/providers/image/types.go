package image

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"retouch/internal/domain"
	"retouch/internal/providers/gemini"
)

// EditRequest describes a normalized request passed to any image editor.
type EditRequest struct {
	ImageURL  string
	Image     []byte
	MIME      string
	Intent    domain.EditIntent
	Prompt    string
	SessionID string
}

// Result is an edited image. Editors return inline Data, a hosted URL, or
// both.
type Result struct {
	URL      string
	PublicID string
	Data     []byte
	Format   string
	Note     string
	Provider string
}

// Editor is the contract implemented by all image editors.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (*Result, error)
	Name() string
}

// Fetcher downloads the source image for editors that need bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// StatusError is returned by REST editors for non-2xx responses.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Code, e.Message)
}

func statusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return gemini.StatusCode(err)
}

func normalizeFormat(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch mime {
	case "image/jpeg", "image/jpg":
		return "image/jpeg"
	case "image/png":
		return "image/png"
	default:
		if strings.HasPrefix(mime, "image/") {
			return mime
		}
		return "image/png"
	}
}
