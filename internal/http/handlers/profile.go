package handlers

import (
	"net/http"
	"time"

	"productstudio/internal/middleware"
)

type profileResponse struct {
	ID        string    `json:"id"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	Locale    string    `json:"locale"`
}

// Profile handles GET /api/profile, creating the profile on first access.
func (a *App) Profile(w http.ResponseWriter, r *http.Request) {
	id := a.currentIdentity(r)
	if !id.Authenticated() {
		a.error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	p, err := a.Profiles.Ensure(r.Context(), id.UserID, a.SignupCredits)
	if err != nil {
		a.log(r).Error().Err(err).Str("user_id", id.UserID).Msg("profile: ensure failed")
		a.error(w, http.StatusInternalServerError, msgInternal)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	a.json(w, http.StatusOK, profileResponse{
		ID:        p.ID,
		Credits:   p.Credits,
		CreatedAt: p.CreatedAt,
		Locale:    middleware.LocaleFromContext(r.Context()),
	})
}
