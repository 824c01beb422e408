package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfryer1193/retrolaminate/editor/application"
)

func TestEditorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEditorMetrics(reg)

	m.ObserveTransformation(application.OutcomeSuccess, 3*time.Second)
	m.ObserveTransformation(application.OutcomeServiceFailure, time.Second)
	m.ObserveTransformation(application.OutcomeServiceFailure, time.Second)
	m.ObserveNavigation("undo", true)
	m.ObserveNavigation("redo", false)
	m.SetBusy(true)
	m.SetHistoryLength(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transformations.WithLabelValues(application.OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transformations.WithLabelValues(application.OutcomeServiceFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Navigations.WithLabelValues("undo", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Navigations.WithLabelValues("redo", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Busy))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.HistoryLength))
	assert.Equal(t, 2, testutil.CollectAndCount(m.TransformationDuration))

	m.SetBusy(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Busy))
}

func TestEditorMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewEditorMetrics(reg)

	assert.Panics(t, func() { NewEditorMetrics(reg) })
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/editor/v1/blobs/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/editor/v1/blobs/a", "/editor/v1/blobs/b", "/healthz", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/editor/v1/blobs/:id", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlightGauge))
}
