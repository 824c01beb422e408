package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dfryer1193/retrolaminate/editor/application"
)

const namespace = "retrolaminate"

var _ application.MetricsRecorder = (*EditorMetrics)(nil)

// EditorMetrics records the editor's transformation and navigation signals.
type EditorMetrics struct {
	Transformations        *prometheus.CounterVec
	TransformationDuration *prometheus.HistogramVec
	Navigations            *prometheus.CounterVec
	Busy                   prometheus.Gauge
	HistoryLength          prometheus.Gauge
}

// NewEditorMetrics creates and registers the editor metrics on reg.
func NewEditorMetrics(reg prometheus.Registerer) *EditorMetrics {
	factory := promauto.With(reg)

	return &EditorMetrics{
		Transformations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "transformations_total",
			Help:      "Total transformations by outcome.",
		}, []string{"outcome"}),
		// Image generation takes seconds, not milliseconds.
		TransformationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "transformation_duration_seconds",
			Help:      "Duration of transformations in seconds by outcome.",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
		Navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "navigations_total",
			Help:      "Undo and redo requests by direction and whether they moved the cursor.",
		}, []string{"direction", "accepted"}),
		Busy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "busy",
			Help:      "1 while a transformation is in flight.",
		}),
		HistoryLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "history_length",
			Help:      "Number of snapshots in the history.",
		}),
	}
}

func (m *EditorMetrics) ObserveTransformation(outcome string, duration time.Duration) {
	m.Transformations.WithLabelValues(outcome).Inc()
	m.TransformationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *EditorMetrics) ObserveNavigation(direction string, accepted bool) {
	m.Navigations.WithLabelValues(direction, strconv.FormatBool(accepted)).Inc()
}

func (m *EditorMetrics) SetBusy(busy bool) {
	if busy {
		m.Busy.Set(1)
		return
	}
	m.Busy.Set(0)
}

func (m *EditorMetrics) SetHistoryLength(n int) {
	m.HistoryLength.Set(float64(n))
}

// HTTPMetrics holds Prometheus metrics for HTTP request tracking.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
}

// NewHTTPMetrics creates and registers HTTP metrics on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)

	return &HTTPMetrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
	}
}

// Middleware records HTTP metrics per matched route. It skips /metrics,
// /healthz and unmatched paths.
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || route == "/metrics" || route == "/healthz" {
			c.Next()
			return
		}

		m.InFlightGauge.Inc()
		defer m.InFlightGauge.Dec()

		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
			status := strconv.Itoa(c.Writer.Status())
			m.RequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(v)
			m.RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		}))

		c.Next()
		timer.ObserveDuration()
	}
}
