package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/metrics"
)

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := configs.MetricsConfig{
		Enabled: true,
		Path:    "/metrics",
		Pprof:   true,
		Labels:  map[string]string{"service": "cloudvault-test"},
	}
	require.NoError(t, metrics.InitMetrics(cfg))

	e := gin.New()
	require.NoError(t, metrics.StartMetricsServer(cfg, e))

	metrics.UploadsTotal.WithLabelValues("server").Inc()
	metrics.JobRuns.WithLabelValues("quota.reconcile", "ok").Inc()

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `cloudvault_uploads_total{mode="server",service="cloudvault-test"}`)
	assert.Contains(t, body, `cloudvault_job_runs_total{job="quota.reconcile",result="ok",service="cloudvault-test"}`)

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsDisabled(t *testing.T) {
	e := gin.New()
	require.NoError(t, metrics.StartMetricsServer(configs.MetricsConfig{}, e))

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
