package handlers

import (
	"errors"
	"io"
	"net/http"

	"retouch/internal/domain"
	"retouch/internal/middleware"
	"retouch/internal/studio"
)

func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	limit := a.MaxUploadBytes
	if limit <= 0 {
		limit = 8 << 20
	}
	// Allow room for the multipart envelope so oversize files reach the
	// validator and get its message.
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.fail(w, "upload", domain.NewInvalidImage("File size exceeds %dMB limit", limit>>20))
			return
		}
		a.fail(w, "upload", domain.MissingParameters("multipart field \"file\" is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		a.fail(w, "upload", domain.BadRequest("could not read upload"))
		return
	}
	res, err := a.Studio.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		a.fail(w, "upload", err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) Analyze(w http.ResponseWriter, r *http.Request) {
	var req studio.AnalyzeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Locale == "" {
		req.Locale = middleware.LocaleFromContext(r.Context())
	}
	if req.SessionID == "" {
		req.SessionID = middleware.SessionID(r)
	}
	res, err := a.Studio.Analyze(r.Context(), req)
	if err != nil {
		a.fail(w, "analyze", err)
		return
	}
	a.json(w, http.StatusOK, res)
}

type iteratePayload struct {
	studio.IterateRequest
	OriginalImageURL string `json:"originalImageUrl"`
}

func (a *App) Iterate(w http.ResponseWriter, r *http.Request) {
	var body iteratePayload
	if !a.decode(w, r, &body) {
		return
	}
	req := body.IterateRequest
	if req.ImageURL == "" {
		req.ImageURL = body.OriginalImageURL
	}
	if req.Locale == "" {
		req.Locale = middleware.LocaleFromContext(r.Context())
	}
	if req.SessionID == "" {
		req.SessionID = middleware.SessionID(r)
	}
	res, err := a.Studio.Iterate(r.Context(), req)
	if err != nil {
		a.fail(w, "iterate", err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) Edit(w http.ResponseWriter, r *http.Request) {
	var req studio.EditRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Studio.Edit(r.Context(), req)
	if err != nil {
		a.fail(w, "edit", err)
		return
	}
	a.json(w, http.StatusOK, res)
}
