package image

import (
	"context"
	"errors"

	"retouch/internal/intent"
)

type geminiImageModel interface {
	EditImage(ctx context.Context, instruction string, image []byte, mimeType string) ([]byte, string, error)
}

// GeminiEditor edits images through the Gen AI SDK image model.
type GeminiEditor struct {
	model geminiImageModel
	fetch Fetcher
}

func NewGeminiEditor(model geminiImageModel, fetch Fetcher) *GeminiEditor {
	return &GeminiEditor{model: model, fetch: fetch}
}

func (g *GeminiEditor) Name() string { return "gemini" }

func (g *GeminiEditor) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	if g == nil || g.model == nil {
		return nil, errors.New("gemini editor not configured")
	}
	data, mime := req.Image, req.MIME
	if len(data) == 0 {
		if g.fetch == nil || req.ImageURL == "" {
			return nil, errors.New("gemini editor: source image required")
		}
		var err error
		data, mime, err = g.fetch.Fetch(ctx, req.ImageURL)
		if err != nil {
			return nil, err
		}
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = intent.Prompt(req.Intent)
	}
	out, format, err := g.model.EditImage(ctx, prompt, data, mime)
	if err != nil {
		return nil, err
	}
	return &Result{Data: out, Format: normalizeFormat(format), Provider: g.Name()}, nil
}

var _ Editor = (*GeminiEditor)(nil)
