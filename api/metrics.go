package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics tracks request outcomes. A nil *metrics is valid and records nothing.
type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epoch_api_requests_total",
				Help: "Total API requests by method, outcome and status",
			},
			[]string{"method", "outcome", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "epoch_api_request_duration_seconds",
				Help:    "Duration of API requests",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"method"},
		),
	}
}

func (m *metrics) observe(method string, status int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	code := ""
	if status > 0 {
		code = strconv.Itoa(status)
	}

	m.requests.WithLabelValues(method, outcome, code).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
