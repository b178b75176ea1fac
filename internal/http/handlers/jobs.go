package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"productstudio/internal/domain"
)

// JobStatus handles GET /api/jobs/{jobId}. Jobs of other users are reported
// as missing.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := a.currentIdentity(r)
	if !id.Authenticated() {
		a.error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		a.error(w, http.StatusNotFound, msgNotFound)
		return
	}
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, msgNotFound)
			return
		}
		a.log(r).Error().Err(err).Str("job_id", jobID).Msg("jobs: lookup failed")
		a.error(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if job.UserID != id.UserID {
		a.error(w, http.StatusNotFound, msgNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	a.json(w, http.StatusOK, job)
}
