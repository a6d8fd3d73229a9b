package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DebugEnv is not mounted in production.
func (a *App) DebugEnv(w http.ResponseWriter, r *http.Request) {
	if a.Production {
		a.error(w, http.StatusNotFound, "NOT_FOUND", "not found")
		return
	}
	a.json(w, http.StatusOK, a.Env)
}

func (a *App) CacheStats(w http.ResponseWriter, r *http.Request) {
	if a.Cache == nil {
		a.json(w, http.StatusOK, map[string]any{"type": "none", "size": 0})
		return
	}
	stats, err := a.Cache.Stats(r.Context())
	if err != nil {
		a.fail(w, "cache.stats", err)
		return
	}
	a.json(w, http.StatusOK, stats)
}
