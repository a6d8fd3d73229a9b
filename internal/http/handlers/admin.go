package handlers

import (
	"net/http"

	"retouch/internal/domain"
)

func (a *App) RegistryList(w http.ResponseWriter, r *http.Request) {
	items, err := a.Registry.List()
	if err != nil {
		a.fail(w, "admin.registry", err)
		return
	}
	if items == nil {
		items = []domain.RegistryItem{}
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": items})
}

// RegistryDelete takes publicId from the JSON body or the query string. The
// storage delete is best effort.
func (a *App) RegistryDelete(w http.ResponseWriter, r *http.Request) {
	var req publicIDRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.PublicID == "" {
		req.PublicID = r.URL.Query().Get("publicId")
	}
	if req.PublicID == "" {
		a.fail(w, "admin.registry", domain.MissingParameters("missing publicId"))
		return
	}
	removed, err := a.Registry.Remove(req.PublicID)
	if err != nil {
		a.fail(w, "admin.registry", err)
		return
	}
	if err := a.Store.Delete(r.Context(), req.PublicID); err != nil {
		a.Logger.Warn().Err(err).Str("phase", "admin.registry.storage_delete").Str("public_id", req.PublicID).Msg("storage delete failed")
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "removed": req.PublicID, "found": removed})
}
