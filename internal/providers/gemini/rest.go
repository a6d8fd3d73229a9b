package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"retouch/internal/domain"
	"retouch/internal/infra"
)

// RESTOptions configures the JSON endpoint behind GEMINI_REST_URL.
type RESTOptions struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// RESTClient talks to a self-hosted Gemini bridge that accepts an image URL
// and returns either an advisory or an edited image.
type RESTClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *infra.Logger
}

func NewRESTClient(opts RESTOptions) *RESTClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &RESTClient{
		endpoint:   strings.TrimSpace(opts.Endpoint),
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: client,
		logger:     logger,
	}
}

func (c *RESTClient) Enabled() bool { return c != nil && c.endpoint != "" }

type AdviceRequest struct {
	ImageURL      string `json:"imageUrl"`
	Prompt        string `json:"prompt"`
	VisionSummary any    `json:"visionSummary,omitempty"`
}

type Advice struct {
	AdvisoryText string `json:"advisoryText"`
	Cut          *struct {
		Length string `json:"length"`
		Style  string `json:"style"`
	} `json:"cut,omitempty"`
	Beard *struct {
		Style   string `json:"style"`
		Density string `json:"density"`
	} `json:"beard,omitempty"`
	Accessories []string `json:"accessories,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// AdvicePrompt is the instruction sent alongside the image for a professional
// advisory in locale.
func AdvicePrompt(locale string) string {
	return fmt.Sprintf("Evalúa la imagen y responde JSON estructurado. Verifica: frontalidad, una sola persona, sin menores ni desnudos. "+
		"Si OK, describe forma de cara, corte recomendado, estilo y densidad de barba, accesorios y una recomendación profesional en %s. "+
		"Incluye campos: advisoryText, cut, beard, accessories, confidence.", locale)
}

func (c *RESTClient) Advise(ctx context.Context, req AdviceRequest) (*Advice, error) {
	if !c.Enabled() {
		return nil, errors.New("gemini rest: endpoint not configured")
	}
	var out Advice
	if err := c.invoke(ctx, req, &out); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("phase", "gemini.response").Bool("has_advisory", out.AdvisoryText != "").Msg("gemini rest advisory")
	return &out, nil
}

type editPayload struct {
	ImageURL    string            `json:"imageUrl"`
	Prompt      string            `json:"prompt"`
	Intent      domain.EditIntent `json:"intent"`
	Mode        string            `json:"mode"`
	OutputSize  int               `json:"outputSize,omitempty"`
	PreserveID  bool              `json:"preserveIdentity"`
	Watermarked bool              `json:"watermark"`
}

// EditResult is what the bridge returns for an edit: a hosted URL, inline
// base64 data, or both.
type EditResult struct {
	URL         string `json:"url"`
	EditedURL   string `json:"editedUrl"`
	PublicID    string `json:"publicId"`
	ImageBase64 string `json:"imageBase64"`
	MIMEType    string `json:"mimeType"`
	Note        string `json:"note"`
}

// Edit asks the bridge to apply intent to imageURL.
func (c *RESTClient) Edit(ctx context.Context, imageURL, prompt string, intent domain.EditIntent) (*EditResult, []byte, error) {
	if !c.Enabled() {
		return nil, nil, errors.New("gemini rest: endpoint not configured")
	}
	payload := editPayload{
		ImageURL:    imageURL,
		Prompt:      prompt,
		Intent:      intent,
		Mode:        "edit",
		OutputSize:  intent.OutputSize,
		PreserveID:  intent.PreserveIdentity,
		Watermarked: intent.Watermark,
	}
	var out EditResult
	if err := c.invoke(ctx, payload, &out); err != nil {
		return nil, nil, err
	}
	if out.URL == "" {
		out.URL = out.EditedURL
	}
	var data []byte
	if out.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(out.ImageBase64)
		if err != nil {
			return nil, nil, fmt.Errorf("decode inline data: %w", err)
		}
		data = decoded
	}
	if out.URL == "" && len(data) == 0 {
		return nil, nil, fmt.Errorf("gemini rest: %w", ErrEmptyResponse)
	}
	return &out, data, nil
}

func (c *RESTClient) invoke(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &StatusError{Code: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}
