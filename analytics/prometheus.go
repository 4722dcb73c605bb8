package analytics

import (
	"github.com/prometheus/client_golang/prometheus"

	"leaderboardkit/core"
)

// PrometheusHook exports request and identity events as Prometheus metrics.
type PrometheusHook struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	events        *prometheus.CounterVec
	authenticated prometheus.Gauge
}

// NewPrometheusHook creates the collectors and registers them with reg.
func NewPrometheusHook(reg prometheus.Registerer) (*PrometheusHook, error) {
	h := &PrometheusHook{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaderboard_requests_total",
				Help: "Total number of leaderboard service requests",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaderboard_request_duration_seconds",
				Help:    "Duration of leaderboard service requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaderboard_events_total",
				Help: "Total number of SDK events by type",
			},
			[]string{"type"},
		),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leaderboard_session_authenticated",
			Help: "1 while a user identity is set",
		}),
	}
	for _, c := range []prometheus.Collector{h.requests, h.duration, h.events, h.authenticated} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *PrometheusHook) OnEvent(e core.Event) {
	h.events.WithLabelValues(string(e.Type)).Inc()
	switch e.Type {
	case core.EventRequestCompleted:
		h.requests.WithLabelValues(e.Operation, "success").Inc()
		h.duration.WithLabelValues(e.Operation).Observe(e.Duration.Seconds())
	case core.EventRequestFailed:
		h.requests.WithLabelValues(e.Operation, "failure").Inc()
		h.duration.WithLabelValues(e.Operation).Observe(e.Duration.Seconds())
	case core.EventIdentitySet:
		h.authenticated.Set(1)
	case core.EventIdentityCleared:
		h.authenticated.Set(0)
	}
}
