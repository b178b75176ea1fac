package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"productstudio/internal/http/handlers"
	"productstudio/internal/middleware"
)

// Options carries the cross-cutting pieces the router mounts around the
// handlers.
type Options struct {
	Logger        zerolog.Logger
	CORSOrigins   []string
	JWTSecret     string
	SessionCookie string
	Localizer     *middleware.Localizer
	// IPLimiter throttles /api per client address, except job status and
	// the billing webhook. Nil disables it.
	IPLimiter middleware.Limiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	if opts.Localizer == nil {
		opts.Localizer = middleware.NewLocalizer(middleware.DefaultLocale, nil)
	}
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.Localizer),
		middleware.Authenticate(opts.JWTSecret, opts.SessionCookie),
	)

	r.Get("/healthz", app.Health)
	r.Get("/readyz", app.Readiness)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if app.Files != nil {
		r.Mount("/static", http.StripPrefix("/static", app.Files.Handler()))
	}

	throttle := func(next http.Handler) http.Handler { return next }
	if opts.IPLimiter != nil {
		throttle = middleware.RateLimit(opts.IPLimiter)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/billing", app.BillingWebhook)
		// Job status is polled every couple of seconds and is not IP throttled.
		r.With(middleware.RequireAuth).Get("/jobs/{jobId}", app.JobStatus)
		r.With(throttle).Get("/styles", app.ListStyles)

		// Identity is checked before the IP budget so anonymous calls get 401.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth, throttle)
			r.Post("/generate", app.Generate)
			r.Get("/profile", app.Profile)
			r.Post("/uploads", app.Upload)
		})
	})

	return r
}
