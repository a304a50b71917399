package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/nais/pulldeploy/pkg/pulldeploy/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	prom := middleware.PrometheusMiddleware("test", registry)

	router := chi.NewRouter()
	router.Use(prom.Handler())
	router.Get("/hello/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/hello/a", "/hello/b", "/wp-admin"} {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := registry.Gather()
	require.NoError(t, err)

	counts := make(map[string]float64)
	for _, family := range families {
		if family.GetName() != "requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			var path string
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					path = label.GetValue()
				}
			}
			counts[path] += metric.GetCounter().GetValue()
		}
	}

	assert.Equal(t, float64(2), counts["/hello/{name}"])
	assert.Equal(t, float64(1), counts["unmatched"])
}

func TestPrometheusInitialize(t *testing.T) {
	registry := prometheus.NewRegistry()
	prom := middleware.PrometheusMiddleware("test", registry)
	prom.Initialize("/deploy", http.MethodPost, http.StatusOK)

	count, err := testutil.GatherAndCount(registry, "requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
