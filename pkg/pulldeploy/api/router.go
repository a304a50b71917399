package api

import (
	"net/http"

	"github.com/go-chi/chi"
	chi_middleware "github.com/go-chi/chi/middleware"
	api_deploy "github.com/nais/pulldeploy/pkg/pulldeploy/api/deploy"
	"github.com/nais/pulldeploy/pkg/pulldeploy/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Deployer    api_deploy.Deployer
	DeployPath  string
	MetricsPath string
	// Where HTTP metrics are registered and read from. Defaults to the global prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

func New(cfg Config) chi.Router {
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	prometheusMiddleware := middleware.PrometheusMiddleware("pulldeploy", cfg.Registerer)

	deploymentHandler := &api_deploy.DeploymentHandler{
		Deployer: cfg.Deployer,
	}

	// Pre-populate request metrics
	for _, code := range api_deploy.StatusCodes {
		prometheusMiddleware.Initialize(cfg.DeployPath, http.MethodPost, code)
	}

	// Base settings for all requests
	router := chi.NewRouter()
	router.Use(
		chi_middleware.RequestID,
		middleware.RequestLogger(),
		prometheusMiddleware.Handler(),
		chi_middleware.StripSlashes,
	)

	router.Get("/isalive", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Mount /metrics endpoint with no authentication
	router.Get(cfg.MetricsPath, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}).ServeHTTP)

	router.With(
		chi_middleware.AllowContentType("application/json"),
	).Post(cfg.DeployPath, deploymentHandler.ServeHTTP)

	return router
}
