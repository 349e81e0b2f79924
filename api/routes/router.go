package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utkarshsingh/money-manager-backend/api/controllers"
	"github.com/utkarshsingh/money-manager-backend/api/middleware"
	"github.com/utkarshsingh/money-manager-backend/internal/profiles"
	"github.com/utkarshsingh/money-manager-backend/pkg/config"
	"github.com/utkarshsingh/money-manager-backend/pkg/logger"
	"github.com/utkarshsingh/money-manager-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP redis.Pinger,
	redisP redis.Pinger,
	profileService profiles.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1.0", func(r chi.Router) {
		r.Post("/register", controllers.RegisterProfile(profileService, logg))
		r.Get("/activate", controllers.ActivateProfile(profileService, logg))
	})

	return r
}
