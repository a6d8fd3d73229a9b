package handlers

import (
	"net/http"
	"strings"

	"retouch/internal/domain"
	"retouch/internal/imaging"
)

type imageURLRequest struct {
	ImageURL string `json:"imageUrl"`
}

func (a *App) Moderate(w http.ResponseWriter, r *http.Request) {
	var req imageURLRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		a.fail(w, "moderate", domain.MissingParameters("imageUrl is required"))
		return
	}
	a.json(w, http.StatusOK, a.Moderator.Check(r.Context(), req.ImageURL))
}

func (a *App) ImageMetadata(w http.ResponseWriter, r *http.Request) {
	var req imageURLRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		a.fail(w, "image_metadata", domain.MissingParameters("imageUrl is required"))
		return
	}
	data, _, err := a.Fetcher.Fetch(r.Context(), req.ImageURL)
	if err != nil {
		a.error(w, http.StatusBadGateway, "failed_fetch", err.Error())
		return
	}
	md, err := imaging.Describe(data)
	if err != nil {
		if !imaging.IsInvalidImage(err) {
			err = domain.NewInvalidImage("Image appears to be corrupted: %v", err)
		}
		a.fail(w, "image_metadata", err)
		return
	}
	a.json(w, http.StatusOK, md)
}

type resizeRequest struct {
	ImageURL     string `json:"imageUrl"`
	TargetWidth  int    `json:"targetWidth"`
	TargetHeight int    `json:"targetHeight"`
}

// ResizeImage answers with the JPEG bytes, not JSON.
func (a *App) ResizeImage(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" || req.TargetWidth <= 0 || req.TargetHeight <= 0 {
		a.fail(w, "resize", domain.MissingParameters("imageUrl, targetWidth and targetHeight are required"))
		return
	}
	out, cached, err := a.Resizer.Resize(r.Context(), req.ImageURL, req.TargetWidth, req.TargetHeight)
	if err != nil {
		if imaging.IsInvalidImage(err) {
			a.error(w, http.StatusBadGateway, "failed_fetch", err.Error())
			return
		}
		a.fail(w, "resize", err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

type publicIDRequest struct {
	PublicID string `json:"publicId"`
}

func (a *App) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req publicIDRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.PublicID == "" {
		a.json(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	if err := a.Studio.Cleanup(r.Context(), req.PublicID); err != nil {
		a.fail(w, "cleanup", err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}
