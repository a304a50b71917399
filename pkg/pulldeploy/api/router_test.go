package api_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nais/pulldeploy/pkg/pulldeploy/api"
	api_deploy "github.com/nais/pulldeploy/pkg/pulldeploy/api/deploy"
	"github.com/nais/pulldeploy/pkg/pulldeploy/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, deployer api_deploy.Deployer) http.Handler {
	registry := prometheus.NewRegistry()
	return api.New(api.Config{
		Deployer:    deployer,
		DeployPath:  "/deploy",
		MetricsPath: "/metrics",
		Registerer:  registry,
		Gatherer:    registry,
	})
}

func TestRouter(t *testing.T) {
	t.Run("isalive", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		newRouter(t, nil).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/isalive", nil))
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("deploy only accepts POST", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		newRouter(t, nil).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/deploy", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
	})

	t.Run("deploy requires json", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/deploy", bytes.NewBufferString("payload=%7B%7D"))
		request.Header.Set("content-type", "application/x-www-form-urlencoded")
		newRouter(t, nil).ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusUnsupportedMediaType, recorder.Code)
	})

	t.Run("deploy is routed to the pipeline and counted", func(t *testing.T) {
		deployer := api_deploy.NewMockDeployer(t)
		deployer.On("Deploy", mock.Anything, mock.Anything).Return(pipeline.Deployed, nil).Once()
		router := newRouter(t, deployer)

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/deploy/", bytes.NewBufferString(`{"repository":{"name":"infra"}}`))
		request.Header.Set("content-type", "application/json")
		router.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusOK, recorder.Code)

		recorder = httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, recorder.Code)

		body, err := io.ReadAll(recorder.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `requests_total{code="200",method="POST",path="/deploy",service="pulldeploy"} 1`)
		assert.Contains(t, string(body), `requests_total{code="500",method="POST",path="/deploy",service="pulldeploy"} 0`)
	})
}
