package image

import (
	"context"

	"retouch/internal/domain"
	"retouch/internal/providers/gemini"
)

type restEditClient interface {
	Enabled() bool
	Edit(ctx context.Context, imageURL, prompt string, intent domain.EditIntent) (*gemini.EditResult, []byte, error)
}

// GeminiRESTEditor edits through the JSON bridge behind GEMINI_REST_URL.
type GeminiRESTEditor struct {
	client restEditClient
}

func NewGeminiRESTEditor(client restEditClient) *GeminiRESTEditor {
	return &GeminiRESTEditor{client: client}
}

func (g *GeminiRESTEditor) Name() string { return "gemini-rest" }

func (g *GeminiRESTEditor) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	res, data, err := g.client.Edit(ctx, req.ImageURL, req.Prompt, req.Intent)
	if err != nil {
		return nil, err
	}
	return &Result{
		URL:      res.URL,
		PublicID: res.PublicID,
		Data:     data,
		Format:   normalizeFormat(res.MIMEType),
		Note:     res.Note,
		Provider: g.Name(),
	}, nil
}

var _ Editor = (*GeminiRESTEditor)(nil)
