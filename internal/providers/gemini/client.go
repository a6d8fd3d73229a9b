// Package gemini wraps the Google Gen AI SDK for the two calls the service
// makes: structured image analysis and image editing.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"retouch/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	Model      string
	ImageModel string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the genai SDK so the analyzer and editor can
// focus on prompts and response shapes.
type Client struct {
	sdk        *genai.Client
	model      string
	imageModel string
	logger     *infra.Logger
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; one with a generous timeout is created for image calls.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	imageModel := opts.ImageModel
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image"
	}

	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}

	return &Client{sdk: sdk, model: model, imageModel: imageModel, logger: logger}, nil
}

// Model returns the configured analysis model identifier.
func (c *Client) Model() string { return c.model }

// ImageModel returns the configured image editing model identifier.
func (c *Client) ImageModel() string { return c.imageModel }

func imageParts(prompt string, image []byte, mimeType string) []*genai.Content {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// GenerateJSON asks the analysis model to describe image and returns the raw
// text of the first candidate, which the prompt constrains to JSON.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	}
	start := time.Now()
	resp, err := c.sdk.Models.GenerateContent(ctx, c.model, imageParts(prompt, image, mimeType), cfg)
	if err != nil {
		return "", wrapAPIError(err)
	}
	text := resp.Text()
	c.logger.Debug().
		Str("phase", "gemini.analysis").
		Str("model", c.model).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Int("response_chars", len(text)).
		Msg("gemini analysis complete")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: empty analysis response: %w", ErrEmptyResponse)
	}
	return text, nil
}

// EditImage sends image plus instruction to the image model and returns the
// first inline image in the response.
func (c *Client) EditImage(ctx context.Context, instruction string, image []byte, mimeType string) ([]byte, string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	start := time.Now()
	resp, err := c.sdk.Models.GenerateContent(ctx, c.imageModel, imageParts(instruction, image, mimeType), cfg)
	if err != nil {
		return nil, "", wrapAPIError(err)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			c.logger.Debug().
				Str("phase", "gemini.edit").
				Str("model", c.imageModel).
				Int64("elapsed_ms", time.Since(start).Milliseconds()).
				Int("bytes", len(part.InlineData.Data)).
				Msg("gemini edit complete")
			mt := part.InlineData.MIMEType
			if mt == "" {
				mt = "image/png"
			}
			return part.InlineData.Data, mt, nil
		}
	}
	return nil, "", fmt.Errorf("gemini: response did not include inline image: %w", ErrEmptyResponse)
}

// ErrEmptyResponse is returned when the model replies without usable content.
var ErrEmptyResponse = errors.New("empty model response")

// StatusError carries the HTTP status of a failed API call.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini status %d: %s", e.Code, e.Message)
}

func wrapAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{Code: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini: %w", err)
}

// StatusCode extracts an HTTP status from err, or 0 when none is known.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
