package handlers

import (
	"net/http"
)

type trackRequest struct {
	Event string         `json:"event"`
	Props map[string]any `json:"props"`
}

func (a *App) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.Metrics.Track(req.Event, req.Props)
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *App) MetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := a.Metrics.Snapshot()
	a.json(w, http.StatusOK, map[string]any{
		"since":  snap.Since,
		"total":  snap.Total,
		"events": snap.Events,
		"top":    snap.Top(5),
	})
}
