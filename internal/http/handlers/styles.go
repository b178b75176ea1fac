package handlers

import "net/http"

// ListStyles handles GET /api/styles. Only ids are exposed.
func (a *App) ListStyles(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string][]string{"styles": a.Styles.IDs()})
}
