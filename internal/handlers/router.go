package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sendnodes-io/sendwallet-sub000/internal/audit"
	"github.com/sendnodes-io/sendwallet-sub000/internal/config"
	"github.com/sendnodes-io/sendwallet-sub000/internal/events"
	"github.com/sendnodes-io/sendwallet-sub000/internal/middleware"
	"github.com/sendnodes-io/sendwallet-sub000/internal/session"
	"github.com/sendnodes-io/sendwallet-sub000/internal/signing"
	"github.com/sendnodes-io/sendwallet-sub000/internal/store"
)

// Dependencies holds all the dependencies needed for handlers.
type Dependencies struct {
	Config  *config.Config
	Logger  *slog.Logger
	Session *session.Manager
	Signer  *signing.Dispatcher
	Events  *events.Bus
	// Limiter guards unlock attempts. Nil selects an in-process limiter.
	Limiter middleware.Limiter
	// Checks are pinged by /ready.
	Checks map[string]store.Pinger
	// Audit serves /api/v1/audit. Nil disables the route.
	Audit audit.Store
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()
	r.NotFound(NotFoundHandler)
	r.MethodNotAllowed(MethodNotAllowedHandler)

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Metrics())
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.SecurityHeaders(deps.Config.IsProduction()))

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewLocalRateLimiter(deps.Config.RateLimit.Requests, deps.Config.RateLimit.Window)
	}

	// Create handlers
	healthHandler := NewHealthHandler(deps.Checks)
	apiHandler := NewAPIHandler(deps.Session, deps.Signer, deps.Config.Security.MaxRequestBodySize)
	eventsHandler := NewEventsHandler(deps.Events, DefaultKeepAlive)

	// Health checks and metrics (no auth, no rate limit)
	r.Get("/health", healthHandler.Liveness)
	r.Get("/ready", healthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BearerAuth(deps.Config.Security.APIToken))

		// Long-lived stream, no request timeout
		r.Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(deps.Config.Server.RequestTimeout))
			r.Use(middleware.MaxBodySize(deps.Config.Security.MaxRequestBodySize))

			r.Route("/session", func(r chi.Router) {
				r.Get("/", apiHandler.GetSession)
				r.With(middleware.RateLimit(limiter)).Post("/unlock", apiHandler.Unlock)
				r.Post("/lock", apiHandler.Lock)
				r.Post("/activity", apiHandler.MarkActivity)
				r.With(middleware.RateLimit(limiter)).Post("/password", apiHandler.ChangePassword)
			})

			r.Route("/keyrings", func(r chi.Router) {
				r.Get("/", apiHandler.ListKeyrings)
				r.Post("/generate", apiHandler.GenerateKeyring)
				r.Post("/import", apiHandler.ImportKeyring)
				r.Post("/private-key", apiHandler.ImportPrivateKey)
				r.Post("/{fingerprint}/addresses", apiHandler.DeriveAddress)
				r.Delete("/{fingerprint}", apiHandler.RemoveKeyring)
			})

			r.Route("/accounts/{address}", func(r chi.Router) {
				r.Post("/hide", apiHandler.HideAccount)
				r.Post("/export", apiHandler.ExportPrivateKey)
			})

			if deps.Audit != nil {
				r.Get("/audit", NewAuditHandler(deps.Audit).List)
			}

			r.Route("/sign", func(r chi.Router) {
				r.Post("/transaction", apiHandler.SignTransaction)
				r.Post("/typed-data", apiHandler.SignTypedData)
				r.Post("/personal", apiHandler.PersonalSign)
			})
		})
	})

	return r
}
