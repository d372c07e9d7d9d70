package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	twoFactor *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_http_requests_total",
			Help: "HTTP requests by route, method, and status.",
		}, []string{"route", "method", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authd_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_refreshes_total",
			Help: "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		twoFactor: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_two_factor_total",
			Help: "Two-factor code verifications by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *metrics) observe(route, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// statusRecorder captures the response status for metrics and logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
