package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calliri/hearth/internal/domain"
	"github.com/calliri/hearth/pkg/health"
	"github.com/calliri/hearth/pkg/middleware"
)

// RouterConfig bundles everything the router needs.
type RouterConfig struct {
	AuthHandler   *AuthHandler
	DeviceHandler *DeviceHandler
	AdminHandler  *AdminHandler
	Health        *health.Handler
	Validate      middleware.TokenValidator
	Logger        *slog.Logger
	ServiceName   string
	CORSOrigins   []string
}

// NewRouter assembles the full endpoint surface with the shared middleware
// chain.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/setup-password", cfg.AuthHandler.SetupPassword)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
		r.Post("/register", cfg.AuthHandler.Register)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Validate))
			r.Post("/register-device", cfg.DeviceHandler.Register)
			r.Get("/me", cfg.AuthHandler.Me)
			r.Post("/change-password", cfg.AuthHandler.ChangePassword)
			r.Get("/devices", cfg.DeviceHandler.List)
			r.Delete("/devices/{id}", cfg.DeviceHandler.Revoke)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Validate))
		r.Use(middleware.RequireRole(domain.RoleAdmin.String()))
		r.Post("/invite", cfg.AdminHandler.CreateInvite)
	})

	return r
}
