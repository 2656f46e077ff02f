// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"scaletrack/internal/app"
)

// OIDCConfig carries the pieces needed for the SSO login flow. Enabled is
// false when no issuer was configured; Provider and OAuth2Config are nil in
// that case.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config *oauth2.Config
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	registry    *app.Registry
	authSvc     *app.AuthService
	oidcConfig  OIDCConfig
	disableAuth bool
	webDir      string
	metrics     http.Handler
	logger      *zap.Logger
}

// New creates a Server wired to the given application services. metrics is
// the handler mounted at /metrics, usually promhttp over the process
// registry.
func New(registry *app.Registry, authSvc *app.AuthService, oidcConfig OIDCConfig, disableAuth bool, webDir string, metrics http.Handler, logger *zap.Logger) *Server {
	return &Server{
		registry:    registry,
		authSvc:     authSvc,
		oidcConfig:  oidcConfig,
		disableAuth: disableAuth,
		webDir:      webDir,
		metrics:     metrics,
		logger:      logger,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})

		api.Post("/auth/login", s.handleLogin)
		api.Post("/auth/logout", s.handleLogout)
		api.Post("/auth/setup", s.handleSetupUser)
		api.Get("/auth/config", s.handleConfig)
		api.Get("/auth/sso/login", s.handleSSOLogin)
		api.Get("/auth/sso/callback", s.handleSSOCallback)

		api.Group(func(priv chi.Router) {
			priv.Use(s.requireUser)

			priv.Get("/records", s.handleFetchRecords)
			priv.Put("/records", s.handleSaveRecord)
			priv.Post("/records/{id}/overwrite", s.handleOverwriteRecord)
			priv.Post("/records/reset", s.handleReset)
			priv.Put("/view", s.handleSetView)
			priv.Get("/view", s.handleGetView)
		})
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.NotFound(spaFromDisk(s.webDir).ServeHTTP)

	return withNoCache(r)
}
