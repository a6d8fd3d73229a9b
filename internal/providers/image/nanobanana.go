package image

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

	"retouch/internal/domain"
)

// NanoBanana calls the external NanoBanana edit service.
type NanoBanana struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewNanoBanana(url, apiKey string, client *http.Client) *NanoBanana {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &NanoBanana{url: strings.TrimSpace(url), apiKey: strings.TrimSpace(apiKey), httpClient: client}
}

func (n *NanoBanana) Name() string { return "nanobanana" }

type nanoRequest struct {
	ImageURL         string              `json:"imageUrl"`
	Prompt           string              `json:"prompt"`
	Changes          []domain.EditChange `json:"changes"`
	PreserveIdentity bool                `json:"preserveIdentity"`
	OutputSize       int                 `json:"outputSize"`
	Locale           string              `json:"locale"`
}

type nanoResponse struct {
	EditedURL   string `json:"editedUrl"`
	URL         string `json:"url"`
	PublicID    string `json:"publicId"`
	ImageBase64 string `json:"imageBase64"`
	MIMEType    string `json:"mimeType"`
	Note        string `json:"note"`
	Error       string `json:"error"`
}

func (n *NanoBanana) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	if n == nil || n.url == "" {
		return nil, errors.New("nanobanana not configured")
	}
	body, err := json.Marshal(nanoRequest{
		ImageURL:         req.ImageURL,
		Prompt:           req.Prompt,
		Changes:          req.Intent.Change,
		PreserveIdentity: req.Intent.PreserveIdentity,
		OutputSize:       req.Intent.OutputSize,
		Locale:           req.Intent.Locale,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("invoke nanobanana: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var payload nanoResponse
		msg := strings.TrimSpace(string(data))
		if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
			msg = payload.Error
		}
		return nil, &StatusError{Provider: n.Name(), Code: resp.StatusCode, Message: msg}
	}

	var payload nanoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode nanobanana response: %w", err)
	}
	res := &Result{
		URL:      firstNonEmpty(payload.EditedURL, payload.URL),
		PublicID: payload.PublicID,
		Format:   normalizeFormat(payload.MIMEType),
		Note:     payload.Note,
		Provider: n.Name(),
	}
	if payload.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(payload.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("decode inline data: %w", err)
		}
		res.Data = data
	}
	if res.URL == "" && len(res.Data) == 0 {
		return nil, errors.New("nanobanana returned no image")
	}
	return res, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ Editor = (*NanoBanana)(nil)
