package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"productstudio/internal/auth"
	"productstudio/internal/domain"
	"productstudio/internal/generation"
	"productstudio/internal/metrics"
	"productstudio/internal/middleware"
	"productstudio/internal/storage"
	"productstudio/internal/styles"
)

// Error bodies returned to clients. Details stay in the logs.
const (
	msgUnauthorized   = "Unauthorized"
	msgInvalidRequest = "Invalid request"
	msgNoCredit       = "NO_CREDIT"
	msgRateLimited    = "Too many requests. Please try again later."
	msgInternal       = "Something went wrong"
	msgNotFound       = "Not found"
)

// App carries the dependencies shared by the HTTP handlers.
type App struct {
	Logger     zerolog.Logger
	Generation *generation.Service
	Jobs       domain.JobRepository
	Profiles   domain.ProfileRepository
	Billing    domain.BillingRepository
	Files      *storage.FileStore
	Styles     *styles.Catalogue
	Metrics    *metrics.Collector

	SignupCredits   int
	MaxUploadBytes  int64
	WebhookSecret   string
	CreditsPerOrder int

	// Ready reports whether backing services are reachable.
	Ready func(ctx context.Context) error
	Now   func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}

func (a *App) currentIdentity(r *http.Request) auth.Identity {
	return middleware.IdentityFromContext(r.Context())
}

// log returns the handler logger tagged with the request id.
func (a *App) log(r *http.Request) *zerolog.Logger {
	l := a.Logger.With().Str("request_id", chimw.GetReqID(r.Context())).Logger()
	return &l
}
