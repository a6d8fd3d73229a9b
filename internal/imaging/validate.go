// Package imaging validates, inspects, resizes and watermarks user images.
package imaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"retouch/internal/domain"
)

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
}

// Info describes a decoded image header.
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Fetched is an image downloaded from a URL and validated.
type Fetched struct {
	Data        []byte
	ContentType string
	Info        Info
}

type ValidatorOptions struct {
	MaxSizeMB    int
	MinDimension int
	MaxDimension int
	HTTPClient   *http.Client
}

type Validator struct {
	maxBytes int64
	maxMB    int
	minDim   int
	maxDim   int
	client   *http.Client
}

func NewValidator(opts ValidatorOptions) *Validator {
	if opts.MinDimension <= 0 {
		opts.MinDimension = 256
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 4096
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Validator{
		maxBytes: int64(opts.MaxSizeMB) * 1024 * 1024,
		maxMB:    opts.MaxSizeMB,
		minDim:   opts.MinDimension,
		maxDim:   opts.MaxDimension,
		client:   opts.HTTPClient,
	}
}

// MaxBytes is the largest accepted payload.
func (v *Validator) MaxBytes() int64 { return v.maxBytes }

// ValidateUpload checks a multipart upload: declared size, declared type and
// that the bytes decode as an image of acceptable dimensions.
func (v *Validator) ValidateUpload(size int64, contentType string, data []byte) (Info, error) {
	if size > v.maxBytes || int64(len(data)) > v.maxBytes {
		return Info{}, domain.NewInvalidImage("File size exceeds %dMB limit", v.maxMB)
	}
	if !allowedType(contentType) {
		return Info{}, domain.NewInvalidImage("Invalid file type: %s. Allowed: JPEG, PNG, WEBP", contentType)
	}
	return v.ValidateBuffer(data)
}

// ValidateBuffer decodes the image header and applies the dimension limits.
func (v *Validator) ValidateBuffer(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, domain.NewInvalidImage("Image appears to be corrupted or empty")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, domain.NewInvalidImage("Image appears to be corrupted: %v", err)
	}
	info := Info{Width: cfg.Width, Height: cfg.Height, Format: format}
	if cfg.Width < v.minDim || cfg.Height < v.minDim {
		return info, domain.NewInvalidImage("Image too small: %dx%d (minimum %dx%d)", cfg.Width, cfg.Height, v.minDim, v.minDim)
	}
	if cfg.Width > v.maxDim || cfg.Height > v.maxDim {
		return info, domain.NewInvalidImage("Image too large: %dx%d (maximum %dx%d)", cfg.Width, cfg.Height, v.maxDim, v.maxDim)
	}
	return info, nil
}

// ValidateImageURL downloads url and validates it like an upload.
func (v *Validator) ValidateImageURL(ctx context.Context, url string) (Fetched, error) {
	data, contentType, err := v.Fetch(ctx, url)
	if err != nil {
		return Fetched{}, err
	}
	if !allowedType(contentType) {
		return Fetched{}, domain.NewInvalidImage("Invalid content type: %s", contentType)
	}
	info, err := v.ValidateBuffer(data)
	if err != nil {
		return Fetched{}, err
	}
	return Fetched{Data: data, ContentType: normalizeType(contentType), Info: info}, nil
}

// Fetch downloads an image without content checks beyond the size cap.
func (v *Validator) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, "", domain.NewInvalidImage("Invalid image URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", domain.NewInvalidImage("Invalid image URL")
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, "", &domain.InvalidImageError{Reason: fmt.Sprintf("Failed to validate image URL: %v", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", domain.NewInvalidImage("Failed to fetch image: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, v.maxBytes+1))
	if err != nil {
		return nil, "", &domain.InvalidImageError{Reason: fmt.Sprintf("Failed to validate image URL: %v", err)}
	}
	if int64(len(data)) > v.maxBytes {
		return nil, "", domain.NewInvalidImage("File size exceeds %dMB limit", v.maxMB)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// Hash returns the hex sha256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func allowedType(contentType string) bool {
	_, ok := allowedTypes[normalizeType(contentType)]
	return ok
}

func normalizeType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mt)
}

// IsInvalidImage reports whether err is a validation failure.
func IsInvalidImage(err error) bool {
	var ie *domain.InvalidImageError
	return errors.As(err, &ie)
}
