// Package vision calls the Google Cloud Vision images:annotate endpoint with an
// API key.
package vision

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

	"retouch/internal/infra"
)

// Feature types understood by images:annotate.
const (
	FeatureFaceDetection   = "FACE_DETECTION"
	FeatureSafeSearch      = "SAFE_SEARCH_DETECTION"
	FeatureImageProperties = "IMAGE_PROPERTIES"
	FeatureLabelDetection  = "LABEL_DETECTION"
)

// Likelihood values returned by SafeSearch.
const (
	Possible   = "POSSIBLE"
	Likely     = "LIKELY"
	VeryLikely = "VERY_LIKELY"
)

// ErrNoAPIKey is returned when the client was constructed without a key.
var ErrNoAPIKey = errors.New("vision: api key not configured")

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://vision.googleapis.com/v1"
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     logger,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c != nil && c.apiKey != "" }

// Image identifies the annotated image either by URL or by inline bytes.
type Image struct {
	URI  string
	Data []byte
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type imageSource struct {
	ImageURI string `json:"imageUri,omitempty"`
}

type imagePayload struct {
	Content string       `json:"content,omitempty"`
	Source  *imageSource `json:"source,omitempty"`
}

type annotateRequest struct {
	Image    imagePayload `json:"image"`
	Features []feature    `json:"features"`
}

type batchRequest struct {
	Requests []annotateRequest `json:"requests"`
}

type FaceAnnotation struct {
	PanAngle            float64 `json:"panAngle"`
	RollAngle           float64 `json:"rollAngle"`
	TiltAngle           float64 `json:"tiltAngle"`
	DetectionConfidence float64 `json:"detectionConfidence"`
}

type SafeSearch struct {
	Adult    string `json:"adult"`
	Racy     string `json:"racy"`
	Violence string `json:"violence"`
	Medical  string `json:"medical"`
	Spoof    string `json:"spoof"`
}

type Color struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

type ColorInfo struct {
	Color         Color   `json:"color"`
	Score         float64 `json:"score"`
	PixelFraction float64 `json:"pixelFraction"`
}

type ImageProperties struct {
	DominantColors struct {
		Colors []ColorInfo `json:"colors"`
	} `json:"dominantColors"`
}

type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Annotation is the subset of an images:annotate response the service reads.
type Annotation struct {
	Faces           []FaceAnnotation `json:"faceAnnotations"`
	SafeSearch      *SafeSearch      `json:"safeSearchAnnotation"`
	ImageProperties *ImageProperties `json:"imagePropertiesAnnotation"`
	Labels          []Label          `json:"labelAnnotations"`
	Error           *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// DominantColor returns the highest ranked dominant color, if any.
func (a *Annotation) DominantColor() (Color, bool) {
	if a == nil || a.ImageProperties == nil || len(a.ImageProperties.DominantColors.Colors) == 0 {
		return Color{}, false
	}
	return a.ImageProperties.DominantColors.Colors[0].Color, true
}

type batchResponse struct {
	Responses []Annotation `json:"responses"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// Annotate runs the requested features against img.
func (c *Client) Annotate(ctx context.Context, img Image, features ...string) (*Annotation, error) {
	if !c.Enabled() {
		return nil, ErrNoAPIKey
	}
	if len(features) == 0 {
		return nil, errors.New("vision: no features requested")
	}
	var payload imagePayload
	switch {
	case len(img.Data) > 0:
		payload.Content = base64.StdEncoding.EncodeToString(img.Data)
	case img.URI != "":
		payload.Source = &imageSource{ImageURI: img.URI}
	default:
		return nil, errors.New("vision: image uri or data required")
	}
	req := annotateRequest{Image: payload}
	for _, f := range features {
		ft := feature{Type: f}
		if f == FeatureFaceDetection || f == FeatureLabelDetection {
			ft.MaxResults = 10
		}
		req.Features = append(req.Features, ft)
	}

	var out batchResponse
	start := time.Now()
	if err := c.invoke(ctx, batchRequest{Requests: []annotateRequest{req}}, &out); err != nil {
		c.logger.Warn().Err(err).Str("phase", "vision.error").Msg("vision annotate failed")
		return nil, err
	}
	if len(out.Responses) == 0 {
		return nil, errors.New("vision: empty response")
	}
	ann := &out.Responses[0]
	if ann.Error != nil && ann.Error.Message != "" {
		return nil, fmt.Errorf("vision status %d: %s", ann.Error.Code, ann.Error.Message)
	}
	c.logger.Debug().
		Str("phase", "vision.response").
		Int("faces", len(ann.Faces)).
		Int("labels", len(ann.Labels)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("vision annotate complete")
	return ann, nil
}

func (c *Client) invoke(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images:annotate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke vision: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr errorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("vision status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		if len(data) > 0 {
			return fmt.Errorf("vision status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("vision status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode vision response: %w", err)
	}
	return nil
}

// AtLeastLikely reports whether v is LIKELY or VERY_LIKELY.
func AtLeastLikely(v string) bool {
	return v == Likely || v == VeryLikely
}
